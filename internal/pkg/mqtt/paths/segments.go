package paths

// Topic segments of the deck event feed.
// Every topic has the form {root}/{segment}/{deckID}.

// Outbound: deck -> broker.
const (
	// Status carries the current SystemStatus. Retained.
	Status = "status"

	// Logs carries log appends and clears.
	Logs = "logs"

	// Vitals carries cpu/memory snapshots. Retained.
	Vitals = "vitals"

	// History carries each new deployment record.
	History = "history"

	// Alert carries the security alert, empty when cleared. Retained.
	Alert = "alert"

	// Flags carries the chaos/dry-run toggles. Retained.
	Flags = "flags"

	// Editor carries script editor open/close/save transitions.
	Editor = "editor"

	// Scripts carries the key of each edited script.
	Scripts = "scripts"

	// Presence is "online" while connected. The broker sets it to "offline"
	// through the last will. Retained.
	Presence = "presence"
)

// Presence payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// Inbound: broker -> deck.
const (
	// Control receives JSON commands such as {"command":"deploy"}.
	Control = "control"
)

// GroupDecks is the shared subscription group for control commands.
const GroupDecks = "opsdeck"
