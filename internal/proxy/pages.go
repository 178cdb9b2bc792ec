package proxy

import (
	"fmt"
	"net/http"

	"github.com/coal/gatetrap/internal/kernel"
)

const pageShell = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title>
<style>body{font-family:sans-serif;max-width:36rem;margin:4rem auto;color:#333}
h1{font-size:1.3rem}</style></head>
<body><h1>%s</h1><p>%s</p></body></html>`

// writeDenyPage serves the terminal rejection response.
func writeDenyPage(w http.ResponseWriter, d *kernel.Decision) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprintf(w, pageShell,
		"Access denied",
		"Access denied",
		"Your access to this site has been blocked.")
}

// writeChallengePage serves the temporary denial. This is the plug point
// for a CAPTCHA widget; solving it is expected to lift the temporary rule
// through the admin surface.
func writeChallengePage(w http.ResponseWriter, d *kernel.Decision) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprintf(w, pageShell,
		"Please verify",
		"Unusual traffic detected",
		"Your requests look automated. Complete the verification to continue.")
}

// writeQueuePage tells an over-limit session its waiting position.
func writeQueuePage(w http.ResponseWriter, d *kernel.Decision) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Retry-After", "30")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, pageShell,
		"Please wait",
		"The site is at capacity",
		fmt.Sprintf("You are number %d in the queue. This page will admit you when a slot frees up.", d.QueueOrder))
}
