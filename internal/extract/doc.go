// Package extract recovers JSON values from free-form model output.
//
// Model answers may wrap JSON in prose or markdown code fences. Extraction is
// a strict two-stage parse: the whole text is parsed first; on failure exactly
// one balanced-bracket scan runs from the first opening token of the expected
// shape to its matching closing token, and that slice is parsed. Malformed
// input never produces an error, only a false result. When several JSON blocks
// are concatenated only the first balanced region is considered.
package extract
