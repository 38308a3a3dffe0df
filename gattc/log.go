package gattc

import (
	"os"

	"github.com/sirupsen/logrus"
)

func defaultLogOutput() *os.File {
	return os.Stderr
}

// recordFields builds the structured logging context attached to every
// engine log line touching a given record.
func recordFields(r *Record) logrus.Fields {
	return logrus.Fields{
		"conn": r.Conn,
		"cid":  r.CID,
		"op":   r.Op.String(),
	}
}

