package sim

import (
	"strconv"
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	Name() string
}

// A Name is a hierarchical name made of dot-separated tokens, such as
// "Fabric.RouterA.InPort[2]".
type Name struct {
	Tokens []NameToken
}

// NameToken is one element of a hierarchical name.
type NameToken struct {
	ElemName string
	Index    []int
}

// ParseName splits a name string into its tokens. It panics on unbalanced
// brackets or non-integer indices.
func ParseName(s string) Name {
	parts := strings.Split(s, ".")
	name := Name{Tokens: make([]NameToken, 0, len(parts))}

	for _, part := range parts {
		name.Tokens = append(name.Tokens, parseNameToken(part))
	}

	return name
}

func parseNameToken(token string) NameToken {
	bracketMustMatch(token)

	segments := strings.Split(token, "[")
	t := NameToken{ElemName: segments[0]}

	for _, seg := range segments[1:] {
		if !strings.HasSuffix(seg, "]") {
			panic("Name index must be closed by a bracket")
		}

		index, err := strconv.Atoi(strings.TrimSuffix(seg, "]"))
		if err != nil {
			panic("Name index must be integer")
		}

		t.Index = append(t.Index, index)
	}

	return t
}

func bracketMustMatch(token string) {
	depth := 0

	for _, c := range token {
		switch c {
		case '[':
			depth++
			if depth > 1 {
				panic("Name brackets must not nest")
			}
		case ']':
			depth--
			if depth < 0 {
				panic("Name bracket must match")
			}
		}
	}

	if depth != 0 {
		panic("Name bracket must match")
	}
}

// NameMustBeValid panics if the name does not follow the naming convention:
// dot-separated, non-empty, CamelCase elements starting with a capital letter,
// with series members written as Elem[i].
func NameMustBeValid(name string) {
	defer func() {
		if r := recover(); r != nil {
			panic("Name " + name + " is not valid: " + r.(string))
		}
	}()

	for _, token := range ParseName(name).Tokens {
		tokenMustBeValid(token)
	}
}

func tokenMustBeValid(token NameToken) {
	if token.ElemName == "" {
		panic("Name element must not be empty")
	}

	for _, c := range []string{"_", "\"", "'", "-", " "} {
		if strings.Contains(token.ElemName, c) {
			panic("Name element must not contain " + c)
		}
	}

	if token.ElemName[0] < 'A' || token.ElemName[0] > 'Z' {
		panic("Name element must start with a capital letter")
	}
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name from a parent name, an element name and an
// index.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
