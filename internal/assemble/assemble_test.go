package assemble

import (
	"strings"
	"testing"

	"github.com/simview/simview/internal/bundle"
)

const testTemplate = `<!DOCTYPE html>
<html>
<head>
<script type="text/javascript">
    var simConfig = { usePostMessage: false };
</script>
<script type="text/javascript" src="loader.js"></script>
<script type="text/javascript" src="custom.js"></script>
<script type="text/javascript" src="telemetry.js"></script>
</head>
<body><div id="root"></div></body>
</html>`

func TestAssembleInlinesScripts(t *testing.T) {
	out := Assemble(Input{
		Template: testTemplate,
		LoaderJS: "var loaded = true;",
		CustomJS: "var custom = 1;",
		SimURL:   "/bundle/simulator.js",
	})

	if !strings.Contains(out, "var loaded = true;") {
		t.Error("loader body not inlined")
	}
	if !strings.Contains(out, "var custom = 1;") {
		t.Error("custom body not inlined")
	}
	if !strings.Contains(out, `src="/bundle/simulator.js"`) {
		t.Error("simulator bundle reference missing")
	}
	if !strings.Contains(out, "min-height: 200px") {
		t.Error("layout style block missing")
	}
	if strings.Contains(out, `src="loader.js"`) || strings.Contains(out, `src="custom.js"`) {
		t.Error("placeholder tags survived assembly")
	}
}

func TestAssembleDropsUnknownScriptTags(t *testing.T) {
	out := Assemble(Input{Template: testTemplate, SimURL: "/bundle/simulator.js"})

	if strings.Contains(out, "telemetry.js") {
		t.Error("unknown placeholder tag not removed")
	}
}

func TestAssembleForcesPostMessage(t *testing.T) {
	out := Assemble(Input{Template: testTemplate, SimURL: "/bundle/simulator.js"})

	if strings.Contains(out, "usePostMessage: false") {
		t.Error("output still contains usePostMessage: false")
	}
	if !strings.Contains(out, "usePostMessage: true") {
		t.Error("output missing usePostMessage: true")
	}
}

func TestAssembleOnlyExternalReferenceIsSimURL(t *testing.T) {
	out := Assemble(Input{
		Template: testTemplate,
		LoaderJS: "x",
		CustomJS: "y",
		SimURL:   "/bundle/simulator.js",
	})

	matches := scriptTagRe.FindAllStringSubmatch(out, -1)
	if len(matches) != 1 {
		t.Fatalf("expected exactly one script src reference, got %d", len(matches))
	}
	if matches[0][1] != "/bundle/simulator.js" {
		t.Errorf("unexpected external reference %q", matches[0][1])
	}
}

func TestAssembleEmbeddedBundleRoundTrip(t *testing.T) {
	b := bundle.New("")

	tmpl, err := b.Resource(bundle.ResIndexHTML)
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	loader, err := b.Resource(bundle.ResLoaderJS)
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	custom, err := b.Resource(bundle.ResCustomJS)
	if err != nil {
		t.Fatalf("custom: %v", err)
	}

	out := Assemble(Input{
		Template: tmpl,
		LoaderJS: loader,
		CustomJS: custom,
		SimURL:   bundle.ResolveURL(bundle.ResSimulatorJS),
	})

	if strings.Contains(out, "usePostMessage: false") {
		t.Error("assembled bundle page still in direct-embed mode")
	}
	if !strings.Contains(out, "addSimMessageHandler") {
		t.Error("default custom script missing from assembled page")
	}
}
