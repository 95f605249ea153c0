// Package proxy implements Share's proxy layer: the lazy handle
// returned for every non-primitive entry, bound to an (entry name,
// attribute path) pair.
//
// Go has no operator overloading or dynamic attribute interception, so
// where a dynamically-typed object would intercept `obj.attr` and
// `obj.method()` through language hooks, Proxy exposes the same three
// operations explicitly:
//
//	p.Attr("field")                // nested access -> a new Proxy one step deeper
//	p.Call(ctx, "Method", true, a) // method call -> CALL command
//	p.Value(ctx)                   // materialization -> direct SoT decode
//
// A plain attribute write (`share.name.sub = v`) is a Call to the
// synthetic setter method under the hood (spec 4.4.4), built by Set.
//
// Barrier protocol (spec 4.4.5): each Share container owns one
// HighWaterMarks tracker shared by every Proxy it hands out. A
// successful write updates the mark for that entry; a subsequent read
// blocks (bounded) until the Source of Truth reports a version at
// least that high, so a process always sees its own writes.
package proxy
