package wecom

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// EncryptedRequest is the outer XML body of a POST callback.
type EncryptedRequest struct {
	XMLName    xml.Name `xml:"xml"`
	ToUserName string   `xml:"ToUserName"`
	AgentID    string   `xml:"AgentID"`
	Encrypt    string   `xml:"Encrypt"`
}

// ParseEncryptedRequest extracts the Encrypt field from a callback body.
func ParseEncryptedRequest(body []byte) (*EncryptedRequest, error) {
	var req EncryptedRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		// A body we cannot read has no Encrypt field either.
		return nil, fmt.Errorf("parse callback body: %w: %v", ErrMissingParameter, err)
	}
	req.Encrypt = strings.TrimSpace(req.Encrypt)
	if req.Encrypt == "" {
		return nil, fmt.Errorf("parse callback body: %w", ErrMissingParameter)
	}
	return &req, nil
}

// Message is a decrypted callback message. Only text messages carry MsgId;
// events (enter_agent, subscribe, ...) do not.
type Message struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	Content      string   `xml:"Content"`
	MsgID        string   `xml:"MsgId"`
	AgentID      string   `xml:"AgentID"`
	Event        string   `xml:"Event"`
	EventKey     string   `xml:"EventKey"`
}

const MsgTypeText = "text"

// ParseMessage decodes a decrypted message body.
func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := xml.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	msg.Content = strings.TrimSpace(msg.Content)
	return &msg, nil
}

// ReplyEnvelope is the encrypted passive-reply document.
type ReplyEnvelope struct {
	XMLName      xml.Name `xml:"xml"`
	Encrypt      cdata    `xml:"Encrypt"`
	MsgSignature cdata    `xml:"MsgSignature"`
	TimeStamp    string   `xml:"TimeStamp"`
	Nonce        cdata    `xml:"Nonce"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

// SealReply encrypts plaintext for tenantID and signs the result the same
// way inbound requests are signed.
func SealReply(token, timestamp, nonce string, plaintext, key []byte, tenantID string) (*ReplyEnvelope, error) {
	if _, err := strconv.ParseInt(timestamp, 10, 64); err != nil {
		return nil, fmt.Errorf("seal reply: timestamp %q: %w", timestamp, err)
	}
	ciphertext, err := Encrypt(plaintext, key, tenantID)
	if err != nil {
		return nil, fmt.Errorf("seal reply: %w", err)
	}
	return &ReplyEnvelope{
		Encrypt:      cdata{ciphertext},
		MsgSignature: cdata{Signature(token, timestamp, nonce, ciphertext)},
		TimeStamp:    timestamp,
		Nonce:        cdata{nonce},
	}, nil
}

// Envelope returns the reply as an Envelope, e.g. for verification.
func (r *ReplyEnvelope) Envelope() Envelope {
	return Envelope{
		Signature:  r.MsgSignature.Value,
		Timestamp:  r.TimeStamp,
		Nonce:      r.Nonce.Value,
		Ciphertext: r.Encrypt.Value,
	}
}
