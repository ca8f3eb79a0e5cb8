package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/twine/lang/value"
)

func TestRenderRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.twig"), "<{% block body %}base{% endblock %}>")
	writeFile(t, filepath.Join(dir, "page.twig"),
		`{% extends "base.twig" %}{% block body %}Hi {{ name }}{% endblock %}`)

	engine := Engine{Path: []string{dir}}
	env := engine.Environment(engine.Loader())
	vars := value.MapOf("name", "ada")

	out := filepath.Join(t.TempDir(), "out.txt")
	r := Render{Output: out}

	job := []renderJob{
		{name: "page.twig"},
		{name: stdinSource, text: "!{{ name|upper }}{% set name = 'x' %}", stdin: true},
		{name: "page.twig"},
	}

	if err := r.run(t.Context(), env, vars, job); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	if want := "<Hi ada>!ADA<Hi ada>"; string(got) != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	if v, _ := vars.Get("name"); v != "ada" {
		t.Errorf("render context changed: name = %v", v)
	}

	if err := r.run(t.Context(), env, vars, []renderJob{{name: "missing.twig"}}); err == nil {
		t.Error("run() of missing template succeeded")
	}
}

func TestRenderWriteError(t *testing.T) {
	t.Parallel()

	r := Render{Output: filepath.Join(t.TempDir(), "no", "such", "dir", "out.txt")}

	if err := r.write("x"); err == nil {
		t.Error("write() into missing directory succeeded")
	}
}

func TestRenderPrepare(t *testing.T) {
	t.Parallel()

	job, err := (&Render{}).prepare([]string{"a.twig", "b.twig"})
	if err != nil {
		t.Fatal(err)
	}

	if len(job) != 2 || job[0].name != "a.twig" || job[1].name != "b.twig" || job[0].stdin {
		t.Errorf("prepare() = %+v", job)
	}
}
