// Package schema parses answer format hints and checks or coerces values against them.
//
// A format hint is a small type expression:
//
//	int
//	float
//	str
//	bool
//	{category:str, quantity:int}
//	list[{product:str, revenue:float}]
//
// Parse turns a hint into a Type. Validate reports whether a value already
// conforms, and Coerce converts what a language model typically returns
// (numbers as text, objects as JSON strings) into the hinted shape:
//
//	t, err := schema.Parse("list[{product:str, revenue:float}]")
//	if err != nil {
//	    // unknown hint
//	}
//	v, err := t.Coerce(`[{"product": "Chai", "revenue": "18.5"}]`)
//	// v == []any{map[string]any{"product": "Chai", "revenue": 18.5}}
package schema
