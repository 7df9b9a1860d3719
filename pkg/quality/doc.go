// Package quality scores stored records so low-value memory can be found
// and improved or retired. Assessment runs a set of validators over a
// record, combines their scores into a weighted mean, and flags records
// falling below a configurable threshold. Reports are computed on demand
// and never persisted by this package.
package quality
