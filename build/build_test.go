package build

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"

	"codefrag/config"
	"codefrag/fragment"
	"codefrag/markup"
	"codefrag/state"
)

const mainML = `open Core
(* part 1 *)
let greet name = printf "Hello, %s\n" name
(* part 2 *)
let () = greet "World"
`

const topScript = `# let x = 1;;
val x : int = 1
# let f y =
    y + 1;;
val f : int -> int = <fun>
`

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		fname := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fname, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func writeZip(t *testing.T, fname string, files map[string]string) {
	t.Helper()
	f, err := os.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeList(t *testing.T, lines ...string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "fragments.list")
	if err := os.WriteFile(fname, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return fname
}

func readOutput(t *testing.T, fname string) string {
	t.Helper()
	data, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("expected output %s: %v", fname, err)
	}
	return string(data)
}

func codeDir(t *testing.T, env *state.LocalEnv) {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"hello/main.ml":       mainML,
		"hello/top.topscript": topScript,
	})
	env.CodeRoot = dir
}

func TestRender_Directory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	codeDir(t, env)
	dst := t.TempDir()

	list := writeList(t,
		"; fragments for chapter 1",
		"",
		`((typ ocaml)(name hello/main.ml)(part 1))`,
		`((typ ocaml)(name hello/main.ml)(part 2)(header false))`,
		`((typ ocamltop)(name hello/top.topscript))`,
	)

	if err := render(ctx, list, dst, env.Log); err != nil {
		t.Fatalf("render() error = %v", err)
	}

	part1 := readOutput(t, filepath.Join(dst, "hello-main-ml-part-1.html"))
	if !strings.Contains(part1, `class="codefrag"`) || !strings.Contains(part1, `id="hello-main-ml-part-1"`) {
		t.Errorf("unexpected block: %s", part1)
	}
	if !strings.Contains(part1, "OCaml: hello/main.ml, continued (part 1)") {
		t.Errorf("caption is missing: %s", part1)
	}
	if !strings.Contains(part1, "greet") || strings.Contains(part1, "World") {
		t.Errorf("wrong part content: %s", part1)
	}

	part2 := readOutput(t, filepath.Join(dst, "hello-main-ml-part-2.html"))
	if strings.Contains(part2, "codefrag-caption") {
		t.Errorf("caption rendered for header false: %s", part2)
	}

	top := readOutput(t, filepath.Join(dst, "hello-top-topscript.html"))
	if n := strings.Count(top, `class="chroma"`); n != 4 {
		t.Errorf("session rendered into %d highlighted blocks, want 4: %s", n, top)
	}
}

func TestRender_SkipFailed(t *testing.T) {
	ctx, env := setupTestEnv(t)
	codeDir(t, env)
	dst := t.TempDir()

	list := writeList(t,
		`((typ ocaml)(name hello/main.ml)(part 7))`,
		`((typ pascal)(name hello/main.ml))`,
		`((typ ocaml)(name hello/missing.ml))`,
		`((typ ocaml)(name hello/main.ml)(part 2))`,
	)

	err := render(ctx, list, dst, env.Log)
	if err == nil {
		t.Fatal("render() expected error")
	}
	if !strings.Contains(err.Error(), "3 fragment(s) failed") {
		t.Errorf("render() error = %v", err)
	}

	var missing *fragment.MissingPartError
	if !errors.As(err, &missing) || missing.Part != 7 {
		t.Errorf("expected MissingPartError for part 7 in %v", err)
	}
	var unknown *fragment.UnknownKindError
	if !errors.As(err, &unknown) || unknown.Token != "pascal" {
		t.Errorf("expected UnknownKindError in %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not exist error in %v", err)
	}

	readOutput(t, filepath.Join(dst, "hello-main-ml-part-2.html"))
}

func TestRender_FailFast(t *testing.T) {
	ctx, env := setupTestEnv(t)
	codeDir(t, env)
	env.FailFast = true
	dst := t.TempDir()

	list := writeList(t,
		`((typ ocaml)(name hello/main.ml)(part 7))`,
		`((typ ocaml)(name hello/main.ml)(part 2))`,
	)

	err := render(ctx, list, dst, env.Log)
	if err == nil || !strings.HasPrefix(err.Error(), "line 1:") {
		t.Fatalf("render() error = %v, want failure on line 1", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "hello-main-ml-part-2.html")); !os.IsNotExist(err) {
		t.Error("processing continued after first failure")
	}
}

func TestRender_Overwrite(t *testing.T) {
	ctx, env := setupTestEnv(t)
	codeDir(t, env)
	dst := t.TempDir()

	existing := filepath.Join(dst, "hello-main-ml-part-1.html")
	if err := os.WriteFile(existing, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	list := writeList(t, `((typ ocaml)(name hello/main.ml)(part 1))`)

	if err := render(ctx, list, dst, env.Log); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("render() error = %v, want already exists", err)
	}
	if readOutput(t, existing) != "old" {
		t.Error("existing file was overwritten")
	}

	env.Overwrite = true
	if err := render(ctx, list, dst, env.Log); err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if readOutput(t, existing) == "old" {
		t.Error("existing file was not overwritten")
	}
}

func TestRender_OutputNameTemplate(t *testing.T) {
	ctx, env := setupTestEnv(t)
	codeDir(t, env)
	env.Cfg.Fragments.OutputNameTemplate = `{{ .Kind }}/{{ .Name | base | trimSuffix ".ml" }}-{{ .Part }}`
	dst := t.TempDir()

	list := writeList(t, `((typ ocaml)(name hello/main.ml)(part 2))`)
	if err := render(ctx, list, dst, env.Log); err != nil {
		t.Fatalf("render() error = %v", err)
	}
	readOutput(t, filepath.Join(dst, "ocaml", "main-2.html"))
}

func TestRender_Archive(t *testing.T) {
	ctx, env := setupTestEnv(t)
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "book.zip")
	writeZip(t, archivePath, map[string]string{
		"book/code/hello/main.ml": mainML,
		"book/README":             "not code",
	})
	env.CodeRoot = filepath.Join(archivePath, "book", "code")
	dst := t.TempDir()

	list := writeList(t, `((typ ocaml)(name hello/main.ml)(part 1))`)
	if err := render(ctx, list, dst, env.Log); err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if out := readOutput(t, filepath.Join(dst, "hello-main-ml-part-1.html")); !strings.Contains(out, "greet") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRender_DebugReport(t *testing.T) {
	ctx, env := setupTestEnv(t)
	codeDir(t, env)
	dst := t.TempDir()

	var err error
	conf := config.ReporterConfig{Destination: filepath.Join(t.TempDir(), "report.zip")}
	if env.Rpt, err = conf.Prepare(); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	list := writeList(t,
		`((typ ocamltop)(name hello/top.topscript))`,
		`((typ ocaml)(name hello/main.ml)(part 9))`,
	)
	if err := render(ctx, list, dst, env.Log); err == nil {
		t.Error("render() expected error for missing part")
	}
	if err := env.Rpt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r, err := zip.OpenReader(conf.Destination)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer r.Close()

	contents := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		contents[f.Name] = string(data)
	}

	dump, ok := contents["fragments/hello-top-topscript.txt"]
	if !ok {
		t.Fatalf("fragment dump is missing, report has %v", slices.Sorted(maps.Keys(contents)))
	}
	if !strings.Contains(dump, "Blocks: 4") || !strings.Contains(dump, "part-0") {
		t.Errorf("unexpected dump:\n%s", dump)
	}
	if _, ok := contents["fragments/hello-main-ml-part-9.txt"]; !ok {
		t.Error("dump of failed fragment is missing")
	}
	if contents["sources/hello/main.ml"] != mainML {
		t.Error("source of failed fragment was not stored")
	}
	if _, ok := contents["list/fragments.list"]; !ok {
		t.Error("fragment list was not stored")
	}
}

func TestExtract(t *testing.T) {
	ctx, env := setupTestEnv(t)
	codeDir(t, env)

	tests := []struct {
		name       string
		descriptor string
		raw        bool
		want       string
		contains   string
	}{
		{
			name:       "raw part",
			descriptor: `((typ ocaml)(name hello/main.ml)(part 2))`,
			raw:        true,
			want:       "let () = greet \"World\"\n",
		},
		{
			name:       "raw part zero",
			descriptor: `((typ ocaml)(name hello/main.ml))`,
			raw:        true,
			want:       "open Core\n",
		},
		{
			name:       "raw session",
			descriptor: `((typ ocamltop)(name hello/top.topscript))`,
			raw:        true,
			want:       "# let x = 1;;\n\nval x : int = 1\n\n# let f y =\n    y + 1;;\n\nval f : int -> int = <fun>\n",
		},
		{
			name:       "raw unnormalized session",
			descriptor: `((typ ocamlrawtop)(name hello/top.topscript))`,
			raw:        true,
			want:       strings.TrimSpace(topScript) + "\n",
		},
		{
			name:       "rendered",
			descriptor: `((typ ocaml)(name hello/main.ml)(part 1))`,
			contains:   `id="hello-main-ml-part-1"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := extract(ctx, tt.descriptor, tt.raw, &out, env.Log); err != nil {
				t.Fatalf("extract() error = %v", err)
			}
			if len(tt.want) > 0 && out.String() != tt.want {
				t.Errorf("extract() = %q, want %q", out.String(), tt.want)
			}
			if len(tt.contains) > 0 && !strings.Contains(out.String(), tt.contains) {
				t.Errorf("extract() = %q, want it to contain %q", out.String(), tt.contains)
			}
		})
	}

	t.Run("unterminated", func(t *testing.T) {
		writeFiles(t, env.CodeRoot, map[string]string{"bad.topscript": "# let x =\n  1"})
		var out bytes.Buffer
		err := extract(ctx, `((typ ocamltop)(name bad.topscript))`, true, &out, env.Log)
		var unterminated *fragment.UnterminatedStatementError
		if !errors.As(err, &unterminated) {
			t.Errorf("extract() error = %v, want UnterminatedStatementError", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		err := extract(ctx, `((typ ocaml)(name`, true, io.Discard, env.Log)
		var malformed *fragment.MalformedDescriptorError
		if !errors.As(err, &malformed) {
			t.Errorf("extract() error = %v, want MalformedDescriptorError", err)
		}
	})
}

func TestOpenCodebase(t *testing.T) {
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"src/a.ml": "let a = 1", "plain.txt": "just text"})
	archivePath := filepath.Join(dir, "code.zip")
	writeZip(t, archivePath, map[string]string{"src/a.ml": "let a = 2"})

	t.Run("directory", func(t *testing.T) {
		c, err := OpenCodebase(ctx, dir, nil, log)
		if err != nil {
			t.Fatalf("OpenCodebase() error = %v", err)
		}
		text, err := c.Read("src/a.ml")
		if err != nil || text != "let a = 1" {
			t.Errorf("Read() = %q, %v", text, err)
		}
		if p, ok := c.Path("src/a.ml"); !ok || p != filepath.Join(dir, "src", "a.ml") {
			t.Errorf("Path() = %q, %v", p, ok)
		}
	})

	t.Run("archive", func(t *testing.T) {
		c, err := OpenCodebase(ctx, archivePath, nil, log)
		if err != nil {
			t.Fatalf("OpenCodebase() error = %v", err)
		}
		if text, err := c.Read("src/a.ml"); err != nil || text != "let a = 2" {
			t.Errorf("Read() = %q, %v", text, err)
		}
		if _, ok := c.Path("src/a.ml"); ok {
			t.Error("Path() should not be available for archives")
		}
		if _, err := c.Read("src/b.ml"); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Read() of missing file error = %v", err)
		}
	})

	t.Run("path inside archive", func(t *testing.T) {
		c, err := OpenCodebase(ctx, filepath.Join(archivePath, "src"), nil, log)
		if err != nil {
			t.Fatalf("OpenCodebase() error = %v", err)
		}
		if text, err := c.Read("a.ml"); err != nil || text != "let a = 2" {
			t.Errorf("Read() = %q, %v", text, err)
		}
		if c.Root() != archivePath {
			t.Errorf("Root() = %q", c.Root())
		}
	})

	for name, src := range map[string]string{
		"not found":             filepath.Join(dir, "nope", "deeper"),
		"tail after directory":  filepath.Join(dir, "src", "missing"),
		"not an archive":        filepath.Join(dir, "plain.txt"),
		"not an archive w/tail": filepath.Join(dir, "plain.txt", "x"),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := OpenCodebase(ctx, src, nil, log); err == nil {
				t.Errorf("OpenCodebase(%s) expected error", src)
			}
		})
	}

	t.Run("invalid names", func(t *testing.T) {
		c, err := OpenCodebase(ctx, dir, nil, log)
		if err != nil {
			t.Fatal(err)
		}
		for _, name := range []string{"../etc/passwd", "/etc/passwd", "", "."} {
			if _, err := c.Read(name); err == nil {
				t.Errorf("Read(%q) expected error", name)
			}
		}
	})
}

func TestCodebase_CodePage(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String("(* Привет *)\nlet x = 1")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"cp.ml": encoded, "utf.ml": "(* Привет *)"})

	c, err := OpenCodebase(context.Background(), dir, charmap.Windows1251, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if text, err := c.Read("cp.ml"); err != nil || text != "(* Привет *)\nlet x = 1" {
		t.Errorf("Read() = %q, %v", text, err)
	}
	// valid UTF-8 is never re-decoded
	if text, err := c.Read("utf.ml"); err != nil || text != "(* Привет *)" {
		t.Errorf("Read() = %q, %v", text, err)
	}
}

func TestReadList(t *testing.T) {
	in := "\ufeff((typ ocaml)(name a.ml))\n\n; comment\n   \n  ((typ json)(name b.json))  \r\n;((typ c)(name c.c))\n"
	entries, err := readList(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readList() error = %v", err)
	}
	want := []entry{
		{line: 1, text: "((typ ocaml)(name a.ml))"},
		{line: 5, text: "((typ json)(name b.json))"},
	}
	if !slices.Equal(entries, want) {
		t.Errorf("readList() = %+v, want %+v", entries, want)
	}
}

func TestOutputPath(t *testing.T) {
	log := zaptest.NewLogger(t)
	dst := filepath.Join(string(filepath.Separator), "out")

	ref := &fragment.Ref{Kind: fragment.KindJSON, Name: "data/book.json", Part: 3}
	if got, want := outputPath(ref, dst, nil, log), filepath.Join(dst, "data-book-json-part-3.html"); got != want {
		t.Errorf("outputPath() = %q, want %q", got, want)
	}

	tests := []struct {
		tmpl string
		want string
	}{
		{`{{ .Name }}`, filepath.Join(dst, "data", "book.json")},
		{`../../{{ .Kind }}/x`, filepath.Join(dst, "json", "x.html")},
		{`{{ .Kind }}/ {{ .Part }} `, filepath.Join(dst, "json", "3.html")},
		{`   `, filepath.Join(dst, "data-book-json-part-3.html")},
		{`{{ .Unknown }}`, filepath.Join(dst, "data-book-json-part-3.html")},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			tmpl, err := markup.ParseTemplate(config.OutputNameTemplateFieldName, tt.tmpl)
			if err != nil {
				t.Fatal(err)
			}
			if got := outputPath(ref, dst, tmpl, log); got != tt.want {
				t.Errorf("outputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newApp(out io.Writer) *cli.Command {
	code := []cli.Flag{&cli.StringFlag{Name: "code"}, &cli.StringFlag{Name: "source-cp"}}
	return &cli.Command{
		Name:   "codefrag",
		Writer: out,
		Commands: []*cli.Command{
			{Name: "extract", Action: Extract, Flags: append([]cli.Flag{&cli.BoolFlag{Name: "raw"}}, code...)},
			{Name: "render", Action: Render, Flags: append([]cli.Flag{&cli.BoolFlag{Name: "overwrite"}, &cli.BoolFlag{Name: "fail-fast"}}, code...)},
			{Name: "stylesheet", Action: Stylesheet},
		},
	}
}

func TestCommands(t *testing.T) {
	ctx, env := setupTestEnv(t)
	codeDir(t, env)
	code := env.CodeRoot

	t.Run("extract", func(t *testing.T) {
		var out bytes.Buffer
		err := newApp(&out).Run(ctx, []string{"codefrag", "extract", "--code", code, "--source-cp", "windows-1251", "--raw",
			`((typ ocaml)(name hello/main.ml)(part 1))`})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if out.String() != "let greet name = printf \"Hello, %s\\n\" name\n" {
			t.Errorf("extract output = %q", out.String())
		}
		if env.CodePage == nil {
			t.Error("code page was not set")
		}
	})

	t.Run("render", func(t *testing.T) {
		dst := t.TempDir()
		list := writeList(t, `((typ ocaml)(name hello/main.ml)(part 2))`)
		err := newApp(io.Discard).Run(ctx, []string{"codefrag", "render", "--code", code, "--fail-fast", list, dst})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !env.FailFast {
			t.Error("fail fast was not set")
		}
		readOutput(t, filepath.Join(dst, "hello-main-ml-part-2.html"))
	})

	t.Run("render without list", func(t *testing.T) {
		if err := newApp(io.Discard).Run(ctx, []string{"codefrag", "render"}); err == nil {
			t.Error("Run() expected error")
		}
	})

	t.Run("stylesheet", func(t *testing.T) {
		var out bytes.Buffer
		if err := newApp(&out).Run(ctx, []string{"codefrag", "stylesheet"}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !strings.Contains(out.String(), ".codefrag .chroma") {
			t.Errorf("unexpected stylesheet: %s", out.String())
		}

		fname := filepath.Join(t.TempDir(), "css", "fragments.css")
		if err := newApp(io.Discard).Run(ctx, []string{"codefrag", "stylesheet", fname}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if readOutput(t, fname) != out.String() {
			t.Error("stylesheet written to file differs from STDOUT")
		}
	})
}
