package gmail

import (
	"encoding/base64"
	"strconv"
	"strings"
	"sync"
	"testing"

	gmailapi "google.golang.org/api/gmail/v1"

	"quote_agent/core/port/out"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseMessage(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "msg-1",
		ThreadId:     "thread-1",
		Snippet:      "Quisiera una cotización...",
		LabelIds:     []string{"INBOX", "UNREAD"},
		InternalDate: 1767000000000,
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "=?UTF-8?Q?Ana_Garc=C3=ADa?= <ana@gmail.com>"},
				{Name: "To", Value: "reservas@andesincoming.pe, info@andesincoming.pe"},
				{Name: "Subject", Value: "Solicitud de cotización"},
				{Name: "Message-ID", Value: "<abc@mail.gmail.com>"},
			},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: b64("<p>Hola</p>")}},
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: b64("Hola, quisiera una cotización.")}},
			},
		},
	}

	em := parseMessage(msg)

	if em.ID != "msg-1" || em.ThreadID != "thread-1" {
		t.Errorf("ids = %s/%s", em.ID, em.ThreadID)
	}
	if em.FromName != "Ana García" || em.FromEmail != "ana@gmail.com" {
		t.Errorf("from = %q <%s>", em.FromName, em.FromEmail)
	}
	if len(em.To) != 2 {
		t.Errorf("to = %v, want 2 recipients", em.To)
	}
	if em.Subject != "Solicitud de cotización" {
		t.Errorf("subject = %q", em.Subject)
	}
	if em.RFC822MsgID != "<abc@mail.gmail.com>" {
		t.Errorf("message-id = %q", em.RFC822MsgID)
	}
	if em.Body != "Hola, quisiera una cotización." {
		t.Errorf("body = %q, want the text/plain part", em.Body)
	}
	if em.IsRead {
		t.Error("UNREAD message reported as read")
	}
}

func TestParseMessageHTMLFallback(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "msg-2",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/html",
			Body:     &gmailapi.MessagePartBody{Data: b64("<div>Hola <b>equipo</b></div>")},
		},
	}

	em := parseMessage(msg)
	if !strings.Contains(em.Body, "Hola") || strings.Contains(em.Body, "<") {
		t.Errorf("body = %q, want stripped text", em.Body)
	}
}

func TestParseMessageSnippetFallback(t *testing.T) {
	msg := &gmailapi.Message{Id: "msg-3", Snippet: "solo snippet"}
	if em := parseMessage(msg); em.Body != "solo snippet" {
		t.Errorf("body = %q, want the snippet", em.Body)
	}
}

func TestBuildRawReply(t *testing.T) {
	raw := buildRawReply("reservas@andesincoming.pe", &out.ReplyRequest{
		To:         "ana@gmail.com",
		Subject:    "Re: su solicitud de viaje [SQ-0001]",
		Body:       "Hola Ana",
		InReplyTo:  "<abc@mail.gmail.com>",
		References: "<first@mail.gmail.com>",
	})

	for _, want := range []string{
		"From: reservas@andesincoming.pe\r\n",
		"To: ana@gmail.com\r\n",
		"In-Reply-To: <abc@mail.gmail.com>\r\n",
		"References: <first@mail.gmail.com> <abc@mail.gmail.com>\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
		"\r\n\r\nHola Ana",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("raw reply missing %q:\n%s", want, raw)
		}
	}
}

func TestJoinReferences(t *testing.T) {
	tests := []struct {
		name       string
		references string
		inReplyTo  string
		want       string
	}{
		{"both empty", "", "", ""},
		{"only in-reply-to", "", "<a>", "<a>"},
		{"only references", "<a> <b>", "", "<a> <b>"},
		{"appends", "<a>", "<b>", "<a> <b>"},
		{"already present", "<a> <b>", "<b>", "<a> <b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinReferences(tt.references, tt.inReplyTo); got != tt.want {
				t.Errorf("joinReferences(%q, %q) = %q, want %q", tt.references, tt.inReplyTo, got, tt.want)
			}
		})
	}
}

func TestSplitAddressList(t *testing.T) {
	got := splitAddressList(" a@x.com , B <b@y.com>,, ")
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "B <b@y.com>" {
		t.Errorf("splitAddressList = %v", got)
	}
}

// Pool workers label emails concurrently, all through the same cache.
func TestLabelCacheConcurrentAccess(t *testing.T) {
	c := &Client{labelIDs: make(map[string]string)}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := "Cotizaciones/" + strconv.Itoa(n%3)
			for j := 0; j < 50; j++ {
				c.storeLabel(name, "Label_"+strconv.Itoa(n%3))
				if id, ok := c.cachedLabel(name); ok && !strings.HasPrefix(id, "Label_") {
					t.Errorf("cachedLabel(%s) = %q", name, id)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if id, ok := c.cachedLabel("Cotizaciones/0"); !ok || id != "Label_0" {
		t.Errorf("cachedLabel after writes = %q, %v", id, ok)
	}
}
