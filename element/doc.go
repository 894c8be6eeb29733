// Package element defines the tagged value model consumed by the column
// encoder: scalars, objects and arrays with a fixed binary layout.
//
// An Element pairs a type tag with the value's native byte encoding. The
// layout is self delimiting, so the column engine can copy previous values,
// emit literals and walk object shapes without a separate schema.
//
// # Basic Usage
//
// Constructing values:
//
//	el := element.Int64(42)
//	obj := element.Object(
//	    element.F("a", element.Int32(1)),
//	    element.F("b", element.Double(2.5)),
//	)
//
// Walking an object:
//
//	for name, field := range obj.Fields() {
//	    fmt.Println(name, field.Type())
//	}
//
// Elements are immutable; constructors copy nothing beyond what they encode,
// and accessors alias the element's storage where possible.
package element
