package script

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/pilot/pkg/types"
)

// writeHeaderHelper emits the custom-header helper definition included
// ahead of the test block whenever custom headers are configured.
func writeHeaderHelper(b *strings.Builder, headers map[string]string) {
	b.WriteString("async function applyCustomHeaders(context) {\n")
	b.WriteString("  await context.setExtraHTTPHeaders({\n")
	for _, key := range sortedKeys(headers) {
		fmt.Fprintf(b, "    %s: %s,\n", jsString(key), jsString(headers[key]))
	}
	b.WriteString("  });\n")
	b.WriteString("}\n\n")
}

// writeAuth emits the header-setting or cookie-injection calls for the
// configured authentication kind. Exactly one kind is active per script.
func writeAuth(b *strings.Builder, spec *types.AuthSpec) {
	switch spec.Kind {
	case types.AuthBearer:
		fmt.Fprintf(b, "  await context.setExtraHTTPHeaders({ 'Authorization': %s });\n",
			jsString("Bearer "+spec.Token))

	case types.AuthBasic:
		credentials := base64.StdEncoding.EncodeToString([]byte(spec.Username + ":" + spec.Password))
		fmt.Fprintf(b, "  await context.setExtraHTTPHeaders({ 'Authorization': %s });\n",
			jsString("Basic "+credentials))

	case types.AuthHeaders:
		b.WriteString("  await context.setExtraHTTPHeaders({\n")
		for _, key := range sortedKeys(spec.Headers) {
			fmt.Fprintf(b, "    %s: %s,\n", jsString(key), jsString(spec.Headers[key]))
		}
		b.WriteString("  });\n")

	case types.AuthCookie:
		b.WriteString("  await context.addCookies([\n")
		for _, cookie := range spec.Cookies {
			domain := cookie.Domain
			if domain == "" {
				domain = "localhost"
			}
			path := cookie.Path
			if path == "" {
				path = "/"
			}
			fmt.Fprintf(b, "    { name: %s, value: %s, domain: %s, path: %s },\n",
				jsString(cookie.Name), jsString(cookie.Value), jsString(domain), jsString(path))
		}
		b.WriteString("  ]);\n")
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
