package www

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/gorilla/sessions"
)

const cookieName = "xmixing_flash"

// flashStore carries one-shot messages across a redirect in a signed cookie.
// The operator session itself lives in the station's session store.
type flashStore struct {
	store *sessions.CookieStore
}

func newFlashStore(secret string) *flashStore {
	var key []byte
	if secret != "" {
		key, _ = base64.StdEncoding.DecodeString(secret)
	}
	if len(key) < 32 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   10 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &flashStore{store: cs}
}

func (f *flashStore) add(w http.ResponseWriter, r *http.Request, msg string) {
	sess, _ := f.store.Get(r, cookieName)
	sess.AddFlash(msg)
	sess.Save(r, w)
}

// take returns and clears pending messages.
func (f *flashStore) take(w http.ResponseWriter, r *http.Request) []string {
	sess, _ := f.store.Get(r, cookieName)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	sess.Save(r, w)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
