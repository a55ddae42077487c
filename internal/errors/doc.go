// Package errors renders state tree violations for people.
//
// Every sentinel error of the observable, schema and codec packages is
// registered under a short code (S001, C001, ...) with a category, a one line
// message and a longer explanation. FromError finds the registered sentinel in
// an error chain and returns a *StateError carrying the code and, for write
// violations, the path of the offending cell.
//
// # Usage
//
//	if err := node.Set("id", "u2"); err != nil {
//	    errors.PrintError(err)
//	}
//	// ERROR S007: Readonly property written
//	//
//	//   at id
//	//
//	//   Readonly properties may only be given a value when the tree or
//	//   the containing object is created.
//	//
//	//   Hint: Initialise the property in the value passed to observable.New.
package errors
