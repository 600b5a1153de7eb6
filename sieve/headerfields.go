package sieve

import (
	"net/textproto"
	"strings"
)

// FieldType identifies a well-known header field. Address fields come
// first, so FieldTypeOf(name) <= LastAddressField tells whether a known
// field carries addresses.
type FieldType int

const (
	UnknownField FieldType = iota

	From
	ResentFrom
	Sender
	ResentSender
	ReturnPath
	ReplyTo
	To
	Cc
	Bcc
	ResentTo
	ResentCc
	ResentBcc
	MessageID
	ResentMessageID
	InReplyTo
	References

	Date
	OrigDate
	ResentDate
	Subject
	Comments
	Keywords
	ContentType
	ContentTransferEncoding
	ContentDisposition
	ContentDescription
	ContentID
	MIMEVersion
	Received
	ContentLanguage
	ContentLocation
	ContentMD5
	ContentBase
	ListID
	ListPost
	ListUnsubscribe
	AutoSubmitted
)

// LastAddressField is the highest FieldType that holds addresses.
const LastAddressField = References

var fieldNames = map[FieldType]string{
	From:                    "From",
	ResentFrom:              "Resent-From",
	Sender:                  "Sender",
	ResentSender:            "Resent-Sender",
	ReturnPath:              "Return-Path",
	ReplyTo:                 "Reply-To",
	To:                      "To",
	Cc:                      "Cc",
	Bcc:                     "Bcc",
	ResentTo:                "Resent-To",
	ResentCc:                "Resent-Cc",
	ResentBcc:               "Resent-Bcc",
	MessageID:               "Message-ID",
	ResentMessageID:         "Resent-Message-ID",
	InReplyTo:               "In-Reply-To",
	References:              "References",
	Date:                    "Date",
	OrigDate:                "Orig-Date",
	ResentDate:              "Resent-Date",
	Subject:                 "Subject",
	Comments:                "Comments",
	Keywords:                "Keywords",
	ContentType:             "Content-Type",
	ContentTransferEncoding: "Content-Transfer-Encoding",
	ContentDisposition:      "Content-Disposition",
	ContentDescription:      "Content-Description",
	ContentID:               "Content-ID",
	MIMEVersion:             "MIME-Version",
	Received:                "Received",
	ContentLanguage:         "Content-Language",
	ContentLocation:         "Content-Location",
	ContentMD5:              "Content-MD5",
	ContentBase:             "Content-Base",
	ListID:                  "List-ID",
	ListPost:                "List-Post",
	ListUnsubscribe:         "List-Unsubscribe",
	AutoSubmitted:           "Auto-Submitted",
}

var fieldTypes = func() map[string]FieldType {
	m := make(map[string]FieldType, len(fieldNames))
	for t, n := range fieldNames {
		m[strings.ToLower(n)] = t
	}
	return m
}()

// FieldTypeOf returns the type of the named field, or UnknownField. The
// lookup is case-insensitive.
func FieldTypeOf(name string) FieldType {
	return fieldTypes[strings.ToLower(name)]
}

func (t FieldType) String() string {
	if n, ok := fieldNames[t]; ok {
		return n
	}
	return "unknown"
}

// CanonicalFieldName returns the conventional spelling of a header field
// name: the table's spelling for known fields, MIME canonical case for
// the rest.
func CanonicalFieldName(name string) string {
	if t := FieldTypeOf(name); t != UnknownField {
		return fieldNames[t]
	}
	return textproto.CanonicalMIMEHeaderKey(name)
}
