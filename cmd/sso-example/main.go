// Command sso-example is a minimal application that signs its users in
// through an sso server.
package main

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"os"

	"git.sr.ht/~jakintosh/sso/pkg/client"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	userCookie  = "ssoUser"
	tokenCookie = "ssoToken"
)

var (
	log       = logrus.New()
	ssoClient *client.Client
)

func main() {
	var opts []client.Option
	opts = append(opts, client.WithLogger(log))
	if os.Getenv("SSO_INSECURE") != "" {
		opts = append(opts, client.WithInsecureServerURL())
	}

	var err error
	ssoClient, err = client.New(
		readEnvVar("SSO_SERVER_URL"),
		readEnvVar("SSO_CLIENT_SECRET"),
		readEnvVar("SSO_CLIENT_TOKEN"),
		opts...,
	)
	if err != nil {
		log.Fatalf("failed to create sso client: %v", err)
	}

	if res := ssoClient.Connect(context.Background()); res.IsError() {
		log.Fatalf("sso server refused connection: %s", res.ErrorMessage())
	}

	r := mux.NewRouter()
	r.HandleFunc("/", home).Methods(http.MethodGet)
	r.HandleFunc("/login", login).Methods(http.MethodPost)
	r.HandleFunc("/logout", logout).Methods(http.MethodPost)
	r.HandleFunc("/example", example).Methods(http.MethodGet)

	if err := http.ListenAndServe(":10000", r); err != nil {
		log.Fatalf("%v", err)
	}
}

// authenticate returns the signed-in user, or "" when the session cookies
// are missing or no longer valid.
func authenticate(r *http.Request) (string, string) {
	user, err := r.Cookie(userCookie)
	if err != nil || user.Value == "" {
		return "", ""
	}
	token, err := r.Cookie(tokenCookie)
	if err != nil || token.Value == "" {
		return "", ""
	}

	if res := ssoClient.ValidateToken(r.Context(), user.Value, token.Value); res.IsError() {
		return "", ""
	}
	return user.Value, token.Value
}

func home(w http.ResponseWriter, r *http.Request) {
	var page string
	if username, _ := authenticate(r); username != "" {
		page = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
<p>Signed in as %s.</p>
<a href="/example">Example page</a>
<form method="post" action="/logout"><button>Log out</button></form>
</body>
</html>`, html.EscapeString(username))
	} else {
		page = `<!DOCTYPE html>
<html>
<body>
<form method="post" action="/login">
	<input name="username" placeholder="username"/>
	<input name="password" type="password" placeholder="password"/>
	<button>Log in</button>
</form>
</body>
</html>`
	}
	w.Write([]byte(page))
}

func login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("username")

	res := ssoClient.Login(r.Context(), username, r.PostForm.Get("password"))
	if res.IsError() {
		log.WithField("username", username).Infof("login failed: %s", res.ErrorMessage())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, sessionCookie(userCookie, username, 0))
	http.SetCookie(w, sessionCookie(tokenCookie, res.GetString("token"), 0))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func logout(w http.ResponseWriter, r *http.Request) {
	if username, token := authenticate(r); username != "" {
		if res := ssoClient.RevokeToken(r.Context(), username, token); res.IsError() {
			log.WithField("username", username).Warnf("revoke failed: %s", res.ErrorMessage())
		}
	}

	http.SetCookie(w, sessionCookie(userCookie, "", -1))
	http.SetCookie(w, sessionCookie(tokenCookie, "", -1))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func example(w http.ResponseWriter, r *http.Request) {
	var page string
	if username, _ := authenticate(r); username != "" {
		page = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
<p>Secret logged in page for %s!</p>
</body>
</html>`, html.EscapeString(username))
	} else {
		page = `<!DOCTYPE html>
<html>
<body>
<p>You are not logged in.</p>
</body>
</html>`
	}
	w.Write([]byte(page))
}

func sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Path:     "/",
		Value:    value,
		MaxAge:   maxAge,
		SameSite: http.SameSiteStrictMode,
		Secure:   true,
		HttpOnly: true,
	}
}

func readEnvVar(name string) string {
	str, present := os.LookupEnv(name)
	if !present {
		log.Fatalf("missing required env var '%s'", name)
	}
	return str
}
