// Package consolidate removes duplicate events and folds repeated listings
// into single records.
//
// Dedupe drops exact duplicates by identity key (normalized title, date and
// time). Consolidate then groups listings of the same show: titles that are
// at least 90% similar once dates and weekday names are stripped, at the
// same venue (after alias resolution), starting within an hour of each
// other. Each group becomes one recurring record listing every occurrence.
// Exhibitions and seasons are merged into one continuous record spanning
// their first and last dates.
package consolidate
