package aggregation

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Aggregation is an ordered list of pipeline stages, optionally bound to a
// domain type for field mapping.
type Aggregation struct {
	stages     []Stage
	domainType any
	options    *Options
}

// NewAggregation builds an untyped pipeline from the given stages.
func NewAggregation(stages ...Stage) (*Aggregation, error) {
	if len(stages) == 0 {
		return nil, errors.New("aggregation: pipeline must contain at least one stage")
	}
	return &Aggregation{stages: stages, options: NewOptions()}, nil
}

// NewTypedAggregation builds a pipeline whose field names are mapped against
// the metadata of domainType.
func NewTypedAggregation(domainType any, stages ...Stage) (*Aggregation, error) {
	if domainType == nil {
		return nil, errors.New("aggregation: domain type must not be nil")
	}
	agg, err := NewAggregation(stages...)
	if err != nil {
		return nil, err
	}
	agg.domainType = domainType
	return agg, nil
}

// WithOptions replaces the command options.
func (a *Aggregation) WithOptions(opts *Options) *Aggregation {
	next := *a
	if opts != nil {
		next.options = opts
	}
	return &next
}

// Options returns the command options, never nil.
func (a *Aggregation) Options() *Options {
	if a.options == nil {
		return NewOptions()
	}
	return a.options
}

// DomainType returns the bound domain type, or nil for untyped pipelines.
func (a *Aggregation) DomainType() any { return a.domainType }

// Stages returns the stage list in pipeline order.
func (a *Aggregation) Stages() []Stage { return a.stages }

// ContainsDynamicallyShaped reports whether any stage can introduce
// documents whose shape is not derivable from the input type, such as
// $unionWith. Strict mapping is downgraded to relaxed for such pipelines.
func (a *Aggregation) ContainsDynamicallyShaped() bool {
	for _, s := range a.stages {
		if _, ok := s.(dynamicallyShaped); ok {
			return true
		}
	}
	return false
}

// ToPipeline renders every stage in order. Stages that expose fields hand
// their exposed set to the context of the following stage, so later stages
// resolve synthetic aliases instead of the raw input fields.
func (a *Aggregation) ToPipeline(ctx Context) ([]bson.D, error) {
	if ctx == nil {
		ctx = DefaultContext
	}
	strict := isStrict(ctx)
	pipeline := make([]bson.D, 0, len(a.stages))
	for i, stage := range a.stages {
		doc, err := stage.Render(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "aggregation: stage %d (%s)", i, stage.Operator())
		}
		pipeline = append(pipeline, doc)
		if exposer, ok := stage.(FieldsExposer); ok {
			fields := exposer.Fields()
			if !fields.ExposesNoFields() {
				_, inheriting := stage.(fieldInheriting)
				ctx = newExposedContext(fields, ctx, inheriting, strict)
			}
		}
	}
	return pipeline, nil
}

func isStrict(ctx Context) bool {
	switch c := ctx.(type) {
	case *typeContext:
		return c.strict
	case *exposedContext:
		return c.strict
	default:
		return false
	}
}

// Verify collects the structural problems of the pipeline by rendering each
// stage against the pass-through context. Mapping failures only surface from
// ToPipeline with a typed context.
func (a *Aggregation) Verify() error {
	var result *multierror.Error
	if len(a.stages) == 0 {
		result = multierror.Append(result, errors.New("aggregation: pipeline must contain at least one stage"))
	}
	for i, stage := range a.stages {
		if stage == nil {
			result = multierror.Append(result, errors.Errorf("aggregation: stage %d is nil", i))
			continue
		}
		if _, err := stage.Render(DefaultContext); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "aggregation: stage %d (%s)", i, stage.Operator()))
		}
	}
	return result.ErrorOrNil()
}
