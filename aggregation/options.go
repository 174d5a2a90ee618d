package aggregation

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mode selects how pipeline rendering maps field names against domain type
// metadata.
type Mode string

// Mapping modes.
const (
	ModeNone    Mode = "none"
	ModeRelaxed Mode = "relaxed"
	ModeStrict  Mode = "strict"
)

// Options carries command-level knobs for running an aggregation.
type Options struct {
	Explain           bool               `mapstructure:"explain"`
	CursorBatchSize   int32              `mapstructure:"cursor_batch_size"`
	Collation         *options.Collation `mapstructure:"-"`
	DomainTypeMapping Mode               `mapstructure:"domain_type_mapping"`
}

// NewOptions returns options with relaxed mapping, matching the default
// behavior of typed pipelines.
func NewOptions() *Options {
	return &Options{DomainTypeMapping: ModeRelaxed}
}

// WithExplain requests the server-side execution plan instead of results.
func (o *Options) WithExplain() *Options {
	next := *o
	next.Explain = true
	return &next
}

// WithCursorBatchSize sets the initial cursor batch size.
func (o *Options) WithCursorBatchSize(size int32) *Options {
	next := *o
	next.CursorBatchSize = size
	return &next
}

// WithCollation sets the collation applied to the whole pipeline.
func (o *Options) WithCollation(c *options.Collation) *Options {
	next := *o
	next.Collation = c
	return &next
}

// WithDomainTypeMapping selects the field mapping mode.
func (o *Options) WithDomainTypeMapping(m Mode) *Options {
	next := *o
	next.DomainTypeMapping = m
	return &next
}

// OptionsFromMap decodes options from a loosely typed configuration map.
func OptionsFromMap(m map[string]any) (*Options, error) {
	opts := NewOptions()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "aggregation: options decoder")
	}
	if err := dec.Decode(m); err != nil {
		return nil, errors.Wrap(err, "aggregation: decode options")
	}
	switch opts.DomainTypeMapping {
	case "", ModeNone, ModeRelaxed, ModeStrict:
	default:
		return nil, errors.Errorf("aggregation: unknown mapping mode %q", opts.DomainTypeMapping)
	}
	if opts.DomainTypeMapping == "" {
		opts.DomainTypeMapping = ModeRelaxed
	}
	return opts, nil
}
