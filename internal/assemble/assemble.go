// Package assemble builds the self-contained panel document. The
// loader page template references its scripts with src attributes;
// inlining them means the panel needs no local server for anything but
// the simulator frame bundle.
package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/simview/simview/internal/bundle"
)

// Input carries the resolved pieces of the panel document. The custom
// script body is expected to already reflect any workspace override.
type Input struct {
	Template string
	LoaderJS string
	CustomJS string
	SimURL   string
}

// scriptTagRe matches the placeholder script tags in the loader page
// template. The placeholder set is fixed, so a templating engine would
// be overkill here.
var scriptTagRe = regexp.MustCompile(`<script\s+type="text/javascript"\s+src="([^"]+)"[^>]*>\s*</script>`)

// frameCSS is the fixed layout injected next to the loader script:
// full-viewport centered flex column with frames growing to fill.
const frameCSS = `
html, body {
    height: 100%;
    width: 100%;
    margin: 0;
    padding: 0;
}
body {
    display: flex;
    flex-direction: column;
    align-items: center;
    justify-content: center;
}
#root, iframe {
    flex: 1 1 auto;
    width: 100%;
    min-height: 200px;
    border: 0;
}
`

// Assemble produces the panel HTML. Each placeholder tag is replaced:
// loader.js becomes the inlined loader followed by a script reference
// to the simulator bundle and the layout style block, custom.js
// becomes the inlined custom script, and anything else is dropped.
// The result is forced into message-passing mode.
func Assemble(in Input) string {
	out := scriptTagRe.ReplaceAllStringFunc(in.Template, func(tag string) string {
		src := scriptTagRe.FindStringSubmatch(tag)[1]
		switch src {
		case bundle.ResLoaderJS:
			return inlineScript(in.LoaderJS) + "\n" +
				fmt.Sprintf(`<script type="text/javascript" src=%q></script>`, in.SimURL) + "\n" +
				"<style>" + frameCSS + "</style>"
		case bundle.ResCustomJS:
			return inlineScript(in.CustomJS)
		default:
			return ""
		}
	})

	return strings.ReplaceAll(out, "usePostMessage: false", "usePostMessage: true")
}

func inlineScript(body string) string {
	return `<script type="text/javascript">` + "\n" + body + "\n</script>"
}
