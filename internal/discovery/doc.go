// Package discovery asks the primary LLM endpoint for the expos and concerts
// a city has in the week around a target date.
//
// Fetch returns raw JSON records for the validator. A failed call, a non-2xx
// response, or output without a JSON array is logged and produces an empty
// list so one bad (city, date) unit never aborts a run. A missing credential
// is reported as services.ErrUnavailable.
package discovery
