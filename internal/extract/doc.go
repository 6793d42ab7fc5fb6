// Package extract turns rendered timeline item containers into Post records.
//
// A Container is anything that can answer selector lookups for one item, so
// the Extractor and Engine run the same way against a live browser snapshot
// or a synthetic HTML fixture. Field resolution is driven by FieldStrategies:
// ordered (selector, attribute) lists per field where the first non-empty
// match wins.
package extract
