// Package configreader fills a tagged struct from, in order of increasing
// precedence, a config file (toml or yaml), command-line flags, and
// environment variables. The file location itself is resolved first from the
// flags and environment, then from the struct's own "config" field.
package configreader

import (
	"encoding"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"fknsrs.biz/p/ytmeta/internal/stringutil"
)

func Read(program string, arguments, environment []string, out interface{}) error {
	if _, _, err := structValue(out); err != nil {
		return fmt.Errorf("configreader.Read: %w", err)
	}

	if configPath, ok := findConfigPath(arguments, environment, out); ok && configPath != "" {
		if err := readFile(configPath, out); err != nil {
			return fmt.Errorf("configreader.Read: %w", err)
		}
	}

	if err := applyArguments(program, arguments, out); err != nil {
		return fmt.Errorf("configreader.Read: could not read command-line flags: %w", err)
	}

	if err := applyEnvironment(environment, out); err != nil {
		return fmt.Errorf("configreader.Read: could not read environment variables: %w", err)
	}

	return nil
}

func structValue(v interface{}) (reflect.Value, reflect.Type, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, nil, fmt.Errorf("configreader: need a non-nil pointer, got %T", v)
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("configreader: need a pointer to a struct, got %T", v)
	}

	return rv, rv.Type(), nil
}

type encodingText interface {
	encoding.TextMarshaler
	encoding.TextUnmarshaler
}

var (
	stringType       = reflect.TypeOf("")
	boolType         = reflect.TypeOf(true)
	intType          = reflect.TypeOf(int(0))
	encodingTextType = reflect.TypeOf((*encodingText)(nil)).Elem()
)

func findConfigPath(arguments, environment []string, obj interface{}) (string, bool) {
	if s, ok := argumentValue(arguments, "config"); ok {
		return s, true
	}

	if s, ok := environmentValue(environment, "config"); ok {
		return s, true
	}

	val, typ, err := structValue(obj)
	if err != nil {
		return "", false
	}

	for i := 0; i < val.NumField(); i++ {
		name, _, ok := fieldName(typ.Field(i))
		if !ok || name != "config" {
			continue
		}

		if typ.Field(i).Type == stringType {
			return val.Field(i).String(), true
		}
	}

	return "", false
}

func argumentValue(arguments []string, name string) (string, bool) {
	prefix := "-" + name

	for i := 0; i < len(arguments); i++ {
		if arguments[i] == prefix && i+1 < len(arguments) {
			return arguments[i+1], true
		}

		if strings.HasPrefix(arguments[i], prefix+"=") {
			return strings.TrimPrefix(arguments[i], prefix+"="), true
		}
	}

	return "", false
}

// environmentValue matches case-insensitively, so the parameter seed_videos_file
// is satisfied by SEED_VIDEOS_FILE=... in the environment.
func environmentValue(environment []string, name string) (string, bool) {
	prefix := strings.ToLower(name + "=")

	for _, e := range environment {
		if strings.HasPrefix(strings.ToLower(e), prefix) {
			return e[len(prefix):], true
		}
	}

	return "", false
}

func readFile(filePath string, out interface{}) error {
	fd, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("readFile: could not open config file: %w", err)
	}
	defer fd.Close()

	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(fd).Decode(out); err != nil {
			return fmt.Errorf("readFile: could not parse %q as yaml: %w", filePath, err)
		}
	case ".toml":
		if err := toml.NewDecoder(fd).Decode(out); err != nil {
			return fmt.Errorf("readFile: could not parse %q as toml: %w", filePath, err)
		}
	default:
		return fmt.Errorf("readFile: could not determine file type for %q", filePath)
	}

	return nil
}

func applyArguments(program string, arguments []string, out interface{}) error {
	val, typ, err := structValue(out)
	if err != nil {
		return err
	}

	flagSet := flag.NewFlagSet(program, flag.ContinueOnError)

	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", program)
		flagSet.PrintDefaults()
		os.Exit(0)
	}

	for i := 0; i < val.NumField(); i++ {
		vf := val.Field(i)
		tf := typ.Field(i)

		name, help, ok := fieldName(tf)
		if !ok {
			continue
		}

		switch {
		case tf.Type == stringType:
			flagSet.StringVar(vf.Addr().Interface().(*string), name, vf.String(), help)
		case tf.Type == boolType:
			flagSet.BoolVar(vf.Addr().Interface().(*bool), name, vf.Bool(), help)
		case tf.Type == intType:
			flagSet.IntVar(vf.Addr().Interface().(*int), name, int(vf.Int()), help)
		case reflect.PointerTo(tf.Type).Implements(encodingTextType):
			flagSet.TextVar(vf.Addr().Interface().(encoding.TextUnmarshaler), name, vf.Addr().Interface().(encoding.TextMarshaler), help)
		default:
			return fmt.Errorf("applyArguments: could not define flag for parameter %s (%s) with type %s", tf.Name, name, tf.Type)
		}
	}

	return flagSet.Parse(arguments)
}

func applyEnvironment(environment []string, out interface{}) error {
	val, typ, err := structValue(out)
	if err != nil {
		return err
	}

	for i := 0; i < typ.NumField(); i++ {
		vf := val.Field(i)
		tf := typ.Field(i)

		name, _, ok := fieldName(tf)
		if !ok {
			continue
		}

		ev, ok := environmentValue(environment, name)
		if !ok {
			continue
		}

		switch {
		case tf.Type == stringType:
			vf.SetString(ev)
		case tf.Type == boolType:
			b, err := strconv.ParseBool(ev)
			if err != nil {
				return fmt.Errorf("applyEnvironment: could not parse parameter %s (%s) as a bool: %w", tf.Name, name, err)
			}
			vf.SetBool(b)
		case tf.Type == intType:
			n, err := strconv.Atoi(ev)
			if err != nil {
				return fmt.Errorf("applyEnvironment: could not parse parameter %s (%s) as a number: %w", tf.Name, name, err)
			}
			vf.SetInt(int64(n))
		case reflect.PointerTo(tf.Type).Implements(encodingTextType):
			if err := vf.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(ev)); err != nil {
				return fmt.Errorf("applyEnvironment: could not unmarshal parameter %s (%s): %w", tf.Name, name, err)
			}
		default:
			return fmt.Errorf("applyEnvironment: could not read parameter %s (%s) of type %s", tf.Name, name, tf.Type)
		}
	}

	return nil
}

func fieldName(f reflect.StructField) (string, string, bool) {
	name := f.Tag.Get("name")
	if name == "" {
		name = stringutil.PascalToSnake(f.Name)
	}

	if name == "-" {
		return "", "", false
	}

	return name, f.Tag.Get("help"), true
}
