package sim

import (
	"context"
	"fmt"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// WritablePrefix prefixes the live writable primitive of every value type.
const WritablePrefix = "Sim::Writable"

// WritablePrimitive names the live writable primitive of t.
func WritablePrimitive(t dataflow.Type) string {
	return WritablePrefix + string(t)
}

// translateLiveWritable compiles a writable leaf into a block that reads
// the leaf's value every cycle, so listeners see later Sets.
func (e *Environment) translateLiveWritable(_ context.Context, p *mapping.Pass) (dataflow.Port, error) {
	n := p.Node()
	e.mu.Lock()
	e.writables[n.Key()] = n
	e.mu.Unlock()

	b, err := p.Block(WritablePrimitive(n.Tag().Type), map[string]string{"Name": n.Key()})
	if err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(mapping.ValueOutput)
}

func (e *Environment) readWritable(key string) (any, bool) {
	e.mu.Lock()
	n, ok := e.writables[key]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	v, ok := n.Cheap()
	if !ok {
		return nil, false
	}
	return n.ToRaw(v), true
}

var writableImpl = impl{
	build: func(b *dataflow.Block, r *Run) (blockFunc, error) {
		key := b.Params["Name"]
		if _, ok := r.env.readWritable(key); !ok {
			return nil, fmt.Errorf("%s: unknown writable %q", b.ID, key)
		}
		return func(cycle, []any) (any, error) {
			v, ok := r.env.readWritable(key)
			if !ok {
				return nil, errNoValue
			}
			return v, nil
		}, nil
	},
}

// liveRegistry extends reg so writable leaves compile to live reads.
func (e *Environment) liveRegistry(reg *mapping.Registry) *mapping.Registry {
	live := reg.Clone()
	live.RegisterFunc(mapping.Generic, sensor.KindWritable, e.translateLiveWritable)
	return live
}
