package sandbox

import (
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
)

// treeView exposes a place tree to hosted code. Reads go straight to the
// tree, so loads and reloads are visible without rebinding. Writes from
// hosted code are refused.
type treeView struct {
	r    *Runtime
	tree *place.Tree
}

// view must be called on the VM thread
func (r *Runtime) view(tree *place.Tree) *goja.Object {
	if tree == nil {
		tree = place.NewTree()
	}
	if obj, ok := r.views[tree]; ok {
		return obj
	}
	obj := r.vm.NewDynamicObject(&treeView{r: r, tree: tree})
	r.views[tree] = obj
	return obj
}

func (v *treeView) Get(key string) goja.Value {
	node, ok := v.tree.Get(key)
	if !ok {
		return nil
	}
	switch n := node.(type) {
	case *place.Tree:
		return v.r.view(n)
	case goja.Value:
		return n
	default:
		return v.r.vm.ToValue(n)
	}
}

func (v *treeView) Set(key string, val goja.Value) bool { return false }

func (v *treeView) Has(key string) bool {
	_, ok := v.tree.Get(key)
	return ok
}

func (v *treeView) Delete(key string) bool { return false }

func (v *treeView) Keys() []string { return v.tree.Keys() }
