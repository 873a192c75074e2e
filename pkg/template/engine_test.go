package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *Context {
	return NewContext(
		map[string]any{"name": "Alice", "age": float64(30), "city": "NYC"},
		map[string]any{"API_KEY": "secret123", "USER": "testuser"},
	)
}

func TestRender_SimplePlaceholders(t *testing.T) {
	engine := New()
	ctx := testContext()

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"props", "Hello {{props.name}}", "Hello Alice"},
		{"env", "API Key: {{env.API_KEY}}", "API Key: secret123"},
		{"input alias", "User: {{input.name}}", "User: Alice"},
		{"multiple", "{{props.name}} lives in {{props.city}}, age {{props.age}}", "Alice lives in NYC, age 30"},
		{"mixed namespaces", "User {{env.USER}} has name {{props.name}}", "User testuser has name Alice"},
		{"inner whitespace", "{{ props.name }} and {{ env.USER }}", "Alice and testuser"},
		{"no placeholders", "Just plain text", "Just plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Render(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRender_MissingPlaceholderIsError(t *testing.T) {
	engine := New()

	_, err := engine.Render("Hello {{props.missing}}", testContext())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "props.missing")
}

func TestRender_NestedPath(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{
		"user": map[string]any{"profile": map[string]any{"name": "Bob"}},
	}, nil)

	result, err := engine.Render("{{props.user.profile.name}}", ctx)

	require.NoError(t, err)
	assert.Equal(t, "Bob", result)
}

func TestRender_NumericIndex(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{
		"items": []any{"first", "second"},
	}, nil)

	result, err := engine.Render("{{props.items.1}}", ctx)

	require.NoError(t, err)
	assert.Equal(t, "second", result)
}

func TestRender_NonDictAccess(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{"value": "string"}, nil)

	_, err := engine.Render("{{props.value.invalid}}", ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "non-dict")
}

func TestRender_UnknownNamespace(t *testing.T) {
	engine := New()

	_, err := engine.Render("{{secrets.key}}", testContext())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestRender_ForLoop(t *testing.T) {
	engine := New()
	ctx := testContext()

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"simple", "@for(i in range(0, 3))Item {{i}} @endfor", "Item 0 Item 1 Item 2 "},
		{"surrounding text", "Start @for(i in range(1, 4)){{i}}, @endfor End", "Start 1, 2, 3,  End"},
		{"single iteration", "@for(i in range(0, 1))Single {{i}}@endfor", "Single 0"},
		{"zero iterations", "@for(i in range(0, 0))Should not appear@endfor", ""},
		{"negative span", "@for(i in range(5, 2))nope@endfor", ""},
		{"multiple loops", "@for(i in range(0, 2))A{{i}}@endfor-@for(j in range(0, 2))B{{j}}@endfor", "A0A1-B0B1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Render(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRender_ForeachSequence(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{"items": []any{"apple", "banana", "cherry"}}, nil)

	result, err := engine.Render("@foreach(item in props.items){{item}}, @endforeach", ctx)

	require.NoError(t, err)
	assert.Equal(t, "apple, banana, cherry, ", result)
}

func TestRender_ForeachObjects(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{
		"users": []any{
			map[string]any{"name": "Alice", "age": float64(30)},
			map[string]any{"name": "Bob", "age": float64(25)},
		},
	}, nil)

	result, err := engine.Render("@foreach(user in props.users){{user.name}} is {{user.age}}, @endforeach", ctx)

	require.NoError(t, err)
	assert.Equal(t, "Alice is 30, Bob is 25, ", result)
}

func TestRender_ForeachMapIteratesValues(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{
		"config": map[string]any{"host": "localhost", "port": float64(8080)},
	}, nil)

	result, err := engine.Render("@foreach(value in props.config){{value}}, @endforeach", ctx)

	require.NoError(t, err)
	// Values are iterated in key order: host, port.
	assert.Equal(t, "localhost, 8080, ", result)
}

func TestRender_ForeachEmpty(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{"items": []any{}}, nil)

	result, err := engine.Render("@foreach(item in props.items){{item}}@endforeach", ctx)

	require.NoError(t, err)
	assert.Equal(t, "", result)
}

func TestRender_ForeachMissingPath(t *testing.T) {
	engine := New()

	_, err := engine.Render("@foreach(item in props.missing){{item}}@endforeach", testContext())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "props.missing")
}

func TestRender_ForeachScalar(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{"value": "string"}, nil)

	_, err := engine.Render("@foreach(item in props.value){{item}}@endforeach", ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "array or object")
}

func TestRender_Conditionals(t *testing.T) {
	engine := New()
	ctx := testContext()

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"truthy", "@if(props.name)Name exists@endif", "Name exists"},
		{"if else true", "@if(props.name)Has name@else No name@endif", "Has name"},
		{"equality true", `@if(props.name == "Alice")Correct name@endif`, "Correct name"},
		{"equality false", `@if(props.name == "Bob")Wrong name@endif`, ""},
		{"inequality", `@if(props.name != "Bob")Not Bob@endif`, "Not Bob"},
		{"greater than", "@if(props.age > 25)Over 25@endif", "Over 25"},
		{"less than", "@if(props.age < 25)Under 25@endif", ""},
		{"gte", "@if(props.age >= 30)At least 30@endif", "At least 30"},
		{"lte", "@if(props.age <= 29)nope@endif", ""},
		{"missing path is false", "@if(props.missing)nope@else fallback@endif", " fallback"},
		{"elseif chain", `@if(props.age > 100)ancient@elseif(props.age > 25)adult@else young@endif`, "adult"},
		{"else branch", "@if(props.missing)a@elseif(props.other)b@else c@endif", " c"},
		{"space before paren", "@if (props.name)spaced@endif", "spaced"},
		{"space before elseif paren", "@if(props.missing)a@elseif (props.age > 25)b@endif", "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Render(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRender_ConditionalFalsyValues(t *testing.T) {
	engine := New()

	tests := []struct {
		name  string
		props map[string]any
	}{
		{"empty string", map[string]any{"v": ""}},
		{"zero", map[string]any{"v": float64(0)}},
		{"false", map[string]any{"v": false}},
		{"empty sequence", map[string]any{"v": []any{}}},
		{"empty mapping", map[string]any{"v": map[string]any{}}},
		{"missing", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Render("@if(props.v)truthy@else falsy@endif", NewContext(tt.props, nil))
			require.NoError(t, err)
			assert.Equal(t, " falsy", result)
		})
	}
}

func TestRender_NonNumericComparisonIsError(t *testing.T) {
	engine := New()

	_, err := engine.Render("@if(props.name > 5)x@endif", testContext())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "numeric")
}

func TestRender_NestedBlocks(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{
		"groups": []any{
			map[string]any{"name": "a", "items": []any{"1", "2"}},
			map[string]any{"name": "b", "items": []any{"3"}},
		},
	}, nil)

	template := "@foreach(g in props.groups){{g.name}}:@foreach(i in g.items){{i}}@endforeach;@endforeach"
	result, err := engine.Render(template, ctx)

	require.NoError(t, err)
	assert.Equal(t, "a:12;b:3;", result)
}

func TestRender_LoopVariableShadowing(t *testing.T) {
	engine := New()
	ctx := NewContext(map[string]any{"items": []any{"x"}}, nil)

	// The inner loop variable shadows the outer one only inside its body.
	template := "@for(i in range(0, 2)){{i}}@for(i in range(9, 10))[{{i}}]@endfor{{i}}@endfor"
	result, err := engine.Render(template, ctx)

	require.NoError(t, err)
	assert.Equal(t, "0[9]01[9]1", result)
}

func TestRender_SyntaxErrors(t *testing.T) {
	engine := New()
	ctx := testContext()

	tests := []struct {
		name     string
		template string
	}{
		{"unterminated placeholder", "Hello {{props.name"},
		{"unterminated for", "@for(i in range(0, 2))body"},
		{"unterminated if", "@if(props.name)body"},
		{"mismatched closer", "@for(i in range(0, 2))body@endif"},
		{"stray endfor", "text @endfor"},
		{"bad for header", "@for(i in 0..2)x@endfor"},
		{"bad foreach header", "@foreach(item of props.items)x@endforeach"},
		{"elseif after else", "@if(props.name)a@else b@elseif(props.city)c@endif"},
		{"bad literal", "@if(props.age == banana)x@endif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Render(tt.template, ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestRender_LiteralAtSign(t *testing.T) {
	engine := New()

	result, err := engine.Render("mail me @ {{props.name}}@example.com", testContext())

	require.NoError(t, err)
	assert.Equal(t, "mail me @ Alice@example.com", result)
}

func TestRender_EndToEndScenarios(t *testing.T) {
	engine := New()

	t.Run("greeting with conditional", func(t *testing.T) {
		ctx := NewContext(map[string]any{"name": "Ana", "premium": true}, nil)
		result, err := engine.Render("Hello {{props.name}}! @if(props.premium)VIP@else Standard@endif", ctx)
		require.NoError(t, err)
		assert.Equal(t, "Hello Ana! VIP", result)
	})

	t.Run("foreach preserves literal layout", func(t *testing.T) {
		ctx := NewContext(map[string]any{"items": []any{"A", "B"}}, nil)
		result, err := engine.Render("@foreach(item in props.items)\n- {{item}}\n@endforeach", ctx)
		require.NoError(t, err)
		assert.Equal(t, "\n- A\n\n- B\n", result)
	})

	t.Run("report with env gate", func(t *testing.T) {
		ctx := NewContext(
			map[string]any{"title": "Report", "items": []any{"apple", "banana"}},
			map[string]any{"MODE": "production"},
		)
		template := "{{props.title}}:\n@foreach(item in props.items)\n- {{item}}\n@endforeach\n@if(env.MODE == \"production\")\nProduction mode active\n@endif"
		result, err := engine.Render(template, ctx)
		require.NoError(t, err)
		assert.Contains(t, result, "Report:")
		assert.Contains(t, result, "- apple")
		assert.Contains(t, result, "- banana")
		assert.Contains(t, result, "Production mode active")
	})
}

func TestRender_Reentrant(t *testing.T) {
	engine := New()
	ctx := testContext()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				result, err := engine.Render("{{props.name}}-@for(i in range(0, 2)){{i}}@endfor", ctx)
				assert.NoError(t, err)
				assert.Equal(t, "Alice-01", result)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
