// Package pipeline runs the batch collection flow: fetch market
// catalogs to date-stamped CSV files, filter the open set, and poll
// REST order books for it.
//
// Steps are selectable by name and run in the order given:
//   - markets: CLOB catalog -> raw_data CSV -> optional DB upsert
//   - gamma: Gamma events -> flatten -> gamma_api CSV -> optional DB replace
//   - filter: raw_data CSV -> open-market predicate -> open_markets CSV
//   - books: open_markets CSV -> snapshot poller -> order_books CSV
//
// A failed step does not stop the run unless fail-fast is set; the
// combined error is returned after every requested step has had its
// chance.
package pipeline
