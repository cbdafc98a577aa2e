// Package log provides this module's one package-level logger. Parser
// and canonicalizer anomalies are logged at Debug; the streaming
// reader/writer log nothing on the happy path and log at Warn only
// when latching an error, per spec §A.1.
package log

import "github.com/sirupsen/logrus"

// L is the shared logger. Callers attach context with WithField/
// WithFields before logging, the idiomatic logrus shape used
// throughout the retrieval pack's larger repos.
var L = logrus.New()

func init() {
	L.SetLevel(logrus.InfoLevel)
}
