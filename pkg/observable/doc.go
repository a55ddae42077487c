// Package observable provides the reactive state tree.
//
// A tree is a hierarchy of nodes validated against schema descriptors. Reads
// are tracked automatically: a computed property or a reaction that reads a
// cell is registered against that (node, key) pair, and writing the cell
// marks the computations stale and hands the reactions to the scheduler.
//
// # Nodes
//
// New wraps a plain value in a root node. Structured values (objects, arrays
// and maps) become nodes of their own when they are attached:
//
//	user := schema.Object(schema.Props{
//	    "name": schema.String(),
//	    "age":  schema.Number(),
//	    "greeting": schema.Computed(func(self schema.Target) (any, error) {
//	        name, err := self.Get("name")
//	        return "Hello, " + name.(string), err
//	    }),
//	})
//	root, err := observable.New(user, map[string]any{"name": "Ada", "age": 36})
//
// # Actions
//
// Writes are only accepted inside an action on the node's root:
//
//	err := root.Run(func() error {
//	    return root.Set("age", 37)
//	})
//
// Every top-level write is recorded as a Diff in the tree's buffer. Diffs can
// be replayed on another tree with ApplyDiffs.
//
// # Reactions
//
// A Reaction tracks the cells it reads and is scheduled when one changes:
//
//	r := observable.NewReaction("print", func() {
//	    name, _ := root.Get("name")
//	    fmt.Println(name)
//	})
//	r.Run()
//	observable.DefaultQueue.Flush()
//
// # Goroutines
//
// The tracking context is per goroutine and a tree is not safe for concurrent
// use. Confine each tree to one goroutine.
package observable
