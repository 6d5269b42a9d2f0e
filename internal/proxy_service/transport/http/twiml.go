package http

import (
	"encoding/xml"
	"net/http"
)

// twimlResponse is the subset of the carrier's XML instruction set that
// routing decisions map onto.
type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Dial    *twimlDial    `xml:"Dial,omitempty"`
	Say     *twimlSay     `xml:"Say,omitempty"`
	Message *twimlMessage `xml:"Message,omitempty"`
	Hangup  *struct{}     `xml:"Hangup,omitempty"`
}

type twimlDial struct {
	CallerID string `xml:"callerId,attr"`
	Number   string `xml:"Number"`
}

type twimlSay struct {
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

type twimlMessage struct {
	Text string `xml:",chardata"`
}

func writeTwiML(w http.ResponseWriter, resp twimlResponse) error {
	body, err := xml.Marshal(resp)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(append([]byte(xml.Header), body...))
	return err
}
