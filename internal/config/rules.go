package config

import (
	"errors"
	"fmt"

	"fmpmunge/internal/compose"
)

// Build converts r into a validated compose.Rule.
func (r Rule) Build() (compose.Rule, error) {
	chunks := make([]compose.Chunk, 0, len(r.Chunks))
	for i, c := range r.Chunks {
		ch, err := c.build()
		if err != nil {
			return compose.Rule{}, fmt.Errorf("chunks[%d]: %w", i, err)
		}
		chunks = append(chunks, ch)
	}

	tpl, err := compose.NewTemplate(chunks...)
	if err != nil {
		return compose.Rule{}, err
	}
	out := compose.Rule{Target: r.Target, Template: tpl, AlignOn: r.AlignOn}
	if r.Mask != nil {
		out.Mask = compose.Mask{Column: r.Mask.Column, Value: r.Mask.Value}
	}
	if err := out.Validate(); err != nil {
		return compose.Rule{}, err
	}
	return out, nil
}

func (c Chunk) build() (compose.Chunk, error) {
	set := 0
	if c.Text != nil {
		set++
	}
	if c.Column != "" {
		set++
	}
	if c.Func != "" || len(c.Args) > 0 {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: chunk must set exactly one of text, column or func", compose.ErrMalformedTemplate)
	}

	switch {
	case c.Text != nil:
		return compose.Literal(*c.Text), nil
	case c.Column != "":
		return compose.Column(c.Column), nil
	}

	if c.Func == "" {
		return nil, fmt.Errorf("%w: args without func", compose.ErrMalformedTemplate)
	}
	fn, ok := compose.Lookup(c.Func)
	if !ok {
		return nil, fmt.Errorf("%w: unknown func %q (known: %v)", compose.ErrMalformedTemplate, c.Func, compose.FuncNames())
	}
	return compose.Call{Func: fn, Args: compose.ArgMap(c.Args)}, nil
}

// BuildRules converts every configured rule, collecting all failures.
func (c Config) BuildRules() ([]compose.Rule, error) {
	var (
		out  []compose.Rule
		errs []error
	)
	for i, r := range c.Rules {
		cr, err := r.Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
			continue
		}
		out = append(out, cr)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
