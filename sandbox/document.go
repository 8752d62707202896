package sandbox

import (
	"fmt"
	"html"
	"strings"
)

// BuildDocument renders the outer harness document for one sandbox. The
// widget markup is embedded through an inner srcdoc frame; the harness
// script relays the guest's postMessage traffic over the sandbox
// WebSocket at wsPath. Only messages from the inner content window are
// relayed, mirroring the host-side source filtering.
func BuildDocument(widgetHTML string, csp CSP, flags Flags, wsPath string) string {
	var doc strings.Builder

	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	doc.WriteString("<meta charset=\"UTF-8\">\n")
	doc.WriteString(fmt.Sprintf("<meta http-equiv=\"Content-Security-Policy\" content=\"%s\">\n", buildCSP(csp)))
	doc.WriteString(`<style>
  html, body { margin: 0; padding: 0; height: 100%; }
  iframe { border: 0; width: 100%; height: 100%; display: block; }
</style>
`)
	doc.WriteString("</head>\n<body>\n")

	doc.WriteString(fmt.Sprintf("<iframe id=\"widget\" sandbox=\"%s\" srcdoc=\"%s\"></iframe>\n",
		flags.Attr(), html.EscapeString(widgetHTML)))

	doc.WriteString(fmt.Sprintf(`<script>
(function () {
  var frame = document.getElementById('widget');
  var scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
  var sock = new WebSocket(scheme + location.host + %q);
  var queue = [];
  sock.onopen = function () {
    queue.forEach(function (m) { sock.send(m); });
    queue = [];
  };
  sock.onmessage = function (ev) {
    frame.contentWindow.postMessage(JSON.parse(ev.data), '*');
  };
  window.addEventListener('message', function (ev) {
    if (ev.source !== frame.contentWindow) { return; }
    var data = JSON.stringify(ev.data);
    if (sock.readyState === WebSocket.OPEN) { sock.send(data); } else { queue.push(data); }
  });
})();
</script>
`, wsPath))

	doc.WriteString("</body>\n</html>\n")
	return doc.String()
}

// buildCSP renders the harness CSP from the collaborator's hints. The
// baseline denies everything, then grants inline script/style for the
// harness and srcdoc content, plus the hinted domains.
func buildCSP(csp CSP) string {
	connect := append([]string{"'self'"}, csp.ConnectDomains...)
	resources := append([]string{"'self'", "data:"}, csp.ResourceDomains...)

	directives := []string{
		"default-src 'none'",
		"script-src 'unsafe-inline'",
		"style-src 'unsafe-inline' " + strings.Join(resources, " "),
		"img-src " + strings.Join(resources, " "),
		"font-src " + strings.Join(resources, " "),
		"connect-src " + strings.Join(connect, " "),
		"frame-src data:",
	}
	return strings.Join(directives, "; ")
}
