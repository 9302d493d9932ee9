package cascade

import (
	"context"
	"errors"
	"strings"

	"github.com/syssam/persist"
	"github.com/syssam/persist/contrib/dataloader"
	"github.com/syssam/persist/entity"
	"github.com/syssam/persist/runner"
)

// batchSize bounds the number of values of one IN list.
const batchSize = 500

// Load fills the relationships declared for P on v. Related entities are
// read with the child BaseSQL filtered by the linked columns; their own
// relationships are not loaded.
func Load[P any](ctx context.Context, e *Engine, desc *entity.Descriptor[P], v *P) error {
	if v == nil {
		return nil
	}
	return LoadAll(ctx, e, desc, []*P{v})
}

// LoadAll fills the relationships declared for P on every entity of vs.
// Relationships linked by a single parent column are read with one
// statement per batch of parents.
func LoadAll[P any](ctx context.Context, e *Engine, desc *entity.Descriptor[P], vs []*P) error {
	if len(vs) == 0 {
		return nil
	}
	for _, rel := range TreeOf[P]().Nodes() {
		if err := rel.load(ctx, e, desc, vs); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node[P, C]) load(ctx context.Context, e *Engine, parent *entity.Descriptor[P], vs []*P) error {
	if n.set == nil {
		return nil
	}
	var sources, literals []link
	for _, l := range n.links {
		if l.literal {
			literals = append(literals, l)
		} else {
			sources = append(sources, l)
		}
	}
	if len(sources) == 0 {
		return n.queryError(errors.New("relationship links no parent column"))
	}
	er := runner.NewEntity(e.r, n.child)
	if len(sources) == 1 {
		return n.loadBatch(ctx, er, parent, vs, sources[0], literals)
	}
	for _, p := range vs {
		if p == nil {
			continue
		}
		args := make([]persist.Argument, 0, len(n.links))
		missing := false
		for _, l := range sources {
			v, err := parent.Value(p, l.source)
			if err != nil {
				return err
			}
			if v == nil {
				missing = true
				break
			}
			args = append(args, persist.Argument{Value: v, Column: l.target})
		}
		if missing {
			n.assign(p, nil)
			continue
		}
		var b strings.Builder
		b.WriteString(n.child.BaseSQL())
		for i, l := range sources {
			n.predicate(&b, i, l.target, " = ?")
		}
		n.literals(&b, len(sources), literals)
		cs, err := er.ReadAll(ctx, b.String(), persist.NewArguments(args...).Concat(literalArgs(literals)))
		if err != nil {
			return err
		}
		n.assign(p, cs)
	}
	return nil
}

// loadBatch reads the children of every parent with IN lists over the
// values of the single source link, and regroups them by that value.
func (n *Node[P, C]) loadBatch(ctx context.Context, er *runner.Entity[C], parent *entity.Descriptor[P], vs []*P, src link, literals []link) error {
	var (
		keys   = make([]string, len(vs))
		values = make(map[string]any, len(vs))
		order  = make([]string, 0, len(vs))
	)
	for i, p := range vs {
		if p == nil {
			continue
		}
		v, err := parent.Value(p, src.source)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		k := persist.Args(v).Key()
		keys[i] = k
		values[k] = v
		order = append(order, k)
	}
	children, err := dataloader.Batch(ctx, dataloader.Unique(order), batchSize, func(ctx context.Context, chunk []string) ([]*C, error) {
		var b strings.Builder
		b.WriteString(n.child.BaseSQL())
		n.predicate(&b, 0, src.target, " IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")+")")
		n.literals(&b, 1, literals)
		args := make([]persist.Argument, len(chunk))
		for i, k := range chunk {
			args[i] = persist.Argument{Value: values[k], Column: src.target}
		}
		return er.ReadAll(ctx, b.String(), persist.NewArguments(args...).Concat(literalArgs(literals)))
	})
	if err != nil {
		return err
	}
	groups := dataloader.GroupByKey(children, func(c *C) string {
		v, _ := n.child.Value(c, src.target)
		return persist.Args(v).Key()
	})
	delete(groups, "")
	for i, cs := range dataloader.OrderGroupsByKeys(keys, groups) {
		if vs[i] != nil {
			n.assign(vs[i], cs)
		}
	}
	return nil
}

// predicate writes the i-th condition on the child column target.
func (n *Node[P, C]) predicate(b *strings.Builder, i int, target, op string) {
	if i == 0 {
		b.WriteString(" WHERE ")
	} else {
		b.WriteString(" AND ")
	}
	name := target
	if c, ok := n.child.Column(target); ok {
		name = c.Name()
	}
	b.WriteString(n.child.Table())
	b.WriteByte('.')
	b.WriteString(name)
	b.WriteString(op)
}

func (n *Node[P, C]) literals(b *strings.Builder, from int, literals []link) {
	for i, l := range literals {
		n.predicate(b, from+i, l.target, " = ?")
	}
}

func literalArgs(literals []link) persist.Arguments {
	args := make([]persist.Argument, len(literals))
	for i, l := range literals {
		args[i] = persist.Argument{Value: l.value, Column: l.target}
	}
	return persist.NewArguments(args...)
}
