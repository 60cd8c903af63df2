package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/opsdeck/opsdeck/internal/deck"
	"github.com/opsdeck/opsdeck/pkg/app"
	"github.com/opsdeck/opsdeck/pkg/log"
	"github.com/opsdeck/opsdeck/pkg/options"
)

type DeckOptions struct {
	HttpOptions *options.HttpOptions `json:"http" mapstructure:"http"`
	MqttOptions *options.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	SimOptions  *options.SimOptions  `json:"sim" mapstructure:"sim"`
	Log         *log.Options         `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*DeckOptions)(nil)

func NewDeckOptions() *DeckOptions {
	o := &DeckOptions{
		HttpOptions: options.NewHttpOptions(),
		MqttOptions: options.NewMqttOptions(),
		SimOptions:  options.NewSimOptions(),
		Log:         log.NewOptions(),
	}

	return o
}

func (o *DeckOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.SimOptions.AddFlags(fss.FlagSet("sim"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *DeckOptions) Complete() error {
	return nil
}

func (o *DeckOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.SimOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *DeckOptions) Config() (*deck.Config, error) {
	return &deck.Config{
		HttpOptions: o.HttpOptions,
		MqttOptions: o.MqttOptions,
		SimOptions:  o.SimOptions,
	}, nil
}
