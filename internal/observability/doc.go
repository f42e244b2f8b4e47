// Package observability records capture-engine events as JSON Lines and
// derives metrics and health alerts from them on demand.
package observability
