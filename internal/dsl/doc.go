// Package dsl parses DreamTheater world scripts.
//
// A script declares scenes and rules, optionally wrapped in a world block:
//
//	world Tutorial {
//	  scene lobby {
//	    description: "Start here"
//	    hint: "Try user.start"
//	    actions: ["user.start"]
//	  }
//
//	  @guard when user.enter and keyCount >= 1 leadsTo goto("secret")
//	}
//
// The Lexer produces tokens for the structural parts (world, scene, when,
// leadsTo, annotations, identifiers, strings and punctuation). Condition
// and action text is captured verbatim and parsed later by the condition
// and effect packages.
//
// Parse never fails. Every problem becomes an ir.Diagnostic on the returned
// program, with the source line where one is known.
package dsl
