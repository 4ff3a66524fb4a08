// Package ir provides the value types shared by every stage of the IADAS
// query pipeline.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. Decoded SPARQL cells, typed
// literals destined for query text, and the canonical encoding used for
// content-addressed identifiers all live here.
//
// Key design constraints:
//   - Value is a sealed union: String, Number, Bool, URIRef
//   - Literal carries an unescaped value; escaping happens in exactly one
//     place (package codec)
//   - Node hashes are byte-exact; query hashes go through canonical JSON
package ir
