// Package dataprocessing normalizes textual date columns and resamples
// tables by calendar keys.
//
// # Components
//
//  1. Normalizer: parses date text under a DateFormatSpec and derives
//     calendar fields, relative dates and intervals as new columns.
//  2. Resampler: groups rows by key columns and reduces the other columns
//     with mean, sum, min, max or count.
//
// Both work on immutable domain.Table snapshots and return new tables.
// Neither holds state between calls, so one instance may serve many
// goroutines.
//
// # Usage
//
//	norm := dataprocessing.NewNormalizer(logger)
//	table, _, err := norm.Apply(ctx, table, []dataprocessing.Derivation{
//	    {Op: dataprocessing.OpParseDate, Source: "date", Format: "MM/dd/yyyy"},
//	    {Op: dataprocessing.OpExtract, Source: "date", Field: "year"},
//	})
//
//	res := dataprocessing.NewResampler(logger)
//	yearly, err := res.Resample(ctx, table, []string{"year"}, dataprocessing.Aggregations{
//	    "avgRate": {Source: "rate", Func: "mean"},
//	})
//
// # Nulls
//
// Text that does not match its format becomes null, and every derived
// column is null where its source is null. Reductions skip nulls; a group
// with only nulls in the source column reduces to null.
package dataprocessing
