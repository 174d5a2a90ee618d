// Package query holds the criteria/condition tree the aggregation match
// stage and the $count fast path consume. Criteria build an ordered document
// mirroring the server's query language; they carry no mapping logic of
// their own.
package query

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CriteriaDefinition is anything that produces a query criteria document.
type CriteriaDefinition interface {
	CriteriaObject() bson.D
}

type predicate struct {
	op  string // empty for direct equality
	val any
}

type criterion struct {
	key   string
	preds []predicate
}

// Criteria is a fluent builder for a query condition tree. The zero value is
// unusable; start chains with Where.
type Criteria struct {
	chain []criterion
	// logical groups rendered under $and / $or / $nor
	groups bson.D
}

// Where starts a criteria chain on the given key.
func Where(key string) *Criteria {
	c := &Criteria{}
	return c.And(key)
}

// And continues the chain on another key.
func (c *Criteria) And(key string) *Criteria {
	c.chain = append(c.chain, criterion{key: key})
	return c
}

func (c *Criteria) current() *criterion {
	if len(c.chain) == 0 {
		c.chain = append(c.chain, criterion{})
	}
	return &c.chain[len(c.chain)-1]
}

func (c *Criteria) add(op string, val any) *Criteria {
	cur := c.current()
	cur.preds = append(cur.preds, predicate{op: op, val: val})
	return c
}

// Is matches the key for equality.
func (c *Criteria) Is(v any) *Criteria { return c.add("", v) }

// Ne matches values not equal to v.
func (c *Criteria) Ne(v any) *Criteria { return c.add("$ne", v) }

// Gt matches values greater than v.
func (c *Criteria) Gt(v any) *Criteria { return c.add("$gt", v) }

// Gte matches values greater than or equal to v.
func (c *Criteria) Gte(v any) *Criteria { return c.add("$gte", v) }

// Lt matches values less than v.
func (c *Criteria) Lt(v any) *Criteria { return c.add("$lt", v) }

// Lte matches values less than or equal to v.
func (c *Criteria) Lte(v any) *Criteria { return c.add("$lte", v) }

// In matches any of the given values.
func (c *Criteria) In(vals ...any) *Criteria { return c.add("$in", bson.A(vals)) }

// Nin matches none of the given values.
func (c *Criteria) Nin(vals ...any) *Criteria { return c.add("$nin", bson.A(vals)) }

// Exists matches on field presence.
func (c *Criteria) Exists(v bool) *Criteria { return c.add("$exists", v) }

// Regex matches the key against a regular expression pattern.
func (c *Criteria) Regex(pattern string) *Criteria {
	return c.add("$regex", pattern)
}

// AndOperator groups criteria under $and.
func (c *Criteria) AndOperator(criteria ...*Criteria) *Criteria {
	return c.group("$and", criteria)
}

// OrOperator groups criteria under $or.
func (c *Criteria) OrOperator(criteria ...*Criteria) *Criteria {
	return c.group("$or", criteria)
}

// NorOperator groups criteria under $nor.
func (c *Criteria) NorOperator(criteria ...*Criteria) *Criteria {
	return c.group("$nor", criteria)
}

func (c *Criteria) group(op string, criteria []*Criteria) *Criteria {
	list := make(bson.A, 0, len(criteria))
	for _, crit := range criteria {
		list = append(list, crit.CriteriaObject())
	}
	c.groups = append(c.groups, bson.E{Key: op, Value: list})
	return c
}

// CriteriaObject renders the criteria as an ordered document. Keys that
// gathered no predicate contribute nothing.
func (c *Criteria) CriteriaObject() bson.D {
	doc := make(bson.D, 0, len(c.chain)+len(c.groups))
	for _, cr := range c.chain {
		if len(cr.preds) == 0 || cr.key == "" {
			continue
		}
		if len(cr.preds) == 1 && cr.preds[0].op == "" {
			doc = append(doc, bson.E{Key: cr.key, Value: cr.preds[0].val})
			continue
		}
		sub := make(bson.D, 0, len(cr.preds))
		for _, p := range cr.preds {
			op := p.op
			if op == "" {
				op = "$eq"
			}
			sub = append(sub, bson.E{Key: op, Value: p.val})
		}
		doc = append(doc, bson.E{Key: cr.key, Value: sub})
	}
	doc = append(doc, c.groups...)
	return doc
}
