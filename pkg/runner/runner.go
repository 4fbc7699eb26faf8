// Package runner generates a self-contained batch test harness around a
// candidate's solution source: one program per language that reads no
// input, calls the candidate function against every test case inline, and
// prints one deterministic "Test i: <json>" line per case.
package runner

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
)

// Language identifies a target runtime for the generated harness.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	Java       Language = "java"
	CPP        Language = "cpp"
)

// MaxCases is the hard cap on test cases per generated batch; the spec
// applies this uniformly to both competitive submissions and the 3-case
// test-run path rather than carving out an exception (§4.C5, open question
// resolved in DESIGN.md).
const MaxCases = 20

// ErrTooManyCases is returned when the caller asks for more than MaxCases.
var ErrTooManyCases = fmt.Errorf("runner: more than %d test cases requested", MaxCases)

func isListNodeType(t string) bool {
	return strings.HasPrefix(t, "ListNode")
}

func isTreeNodeType(t string) bool {
	return strings.HasPrefix(t, "TreeNode")
}

// Generate emits the batch harness source for lang. solutionSource is
// inlined verbatim; it must already define a Solution type/function in that
// language's idiom with the name sig.FunctionName.
func Generate(lang Language, sig models.Signature, solutionSource string, cases []models.TestCase) (string, error) {
	if len(cases) > MaxCases {
		return "", ErrTooManyCases
	}
	switch lang {
	case Python:
		return generatePython(sig, solutionSource, cases), nil
	case JavaScript:
		return generateJavaScript(sig, solutionSource, cases), nil
	case Java:
		return generateJava(sig, solutionSource, cases), nil
	case CPP:
		return generateCPP(sig, solutionSource, cases), nil
	default:
		return "", fmt.Errorf("runner: unsupported language %q", lang)
	}
}

// ResolveLanguage maps a client-facing language alias onto a supported
// Language, or false if unsupported.
func ResolveLanguage(alias string) (Language, bool) {
	switch strings.ToLower(alias) {
	case "python", "python3", "py":
		return Python, true
	case "javascript", "js", "node", "nodejs":
		return JavaScript, true
	case "java":
		return Java, true
	case "cpp", "c++", "cplusplus":
		return CPP, true
	default:
		return "", false
	}
}

// ---- Python ----

const pythonListNodeHelpers = `
class ListNode:
    def __init__(self, val=0, next=None):
        self.val = val
        self.next = next

def deserializeList(arr):
    head = None
    tail = None
    for v in arr:
        node = ListNode(v)
        if head is None:
            head = node
        else:
            tail.next = node
        tail = node
    return head

def serializeList(head):
    out = []
    seen = set()
    node = head
    while node is not None and id(node) not in seen:
        seen.add(id(node))
        out.append(node.val)
        node = node.next
    return out

def attachCycle(head, pos):
    if pos < 0 or head is None:
        return head
    nodes = []
    node = head
    while node is not None:
        nodes.append(node)
        node = node.next
    if pos >= len(nodes):
        return head
    nodes[-1].next = nodes[pos]
    return head
`

const pythonTreeNodeHelpers = `
class TreeNode:
    def __init__(self, val=0, left=None, right=None):
        self.val = val
        self.left = left
        self.right = right

def deserializeTree(values):
    if not values or values[0] is None:
        return None
    root = TreeNode(values[0])
    queue = [root]
    i = 1
    while queue and i < len(values):
        node = queue.pop(0)
        if i < len(values):
            v = values[i]
            i += 1
            if v is not None:
                node.left = TreeNode(v)
                queue.append(node.left)
        if i < len(values):
            v = values[i]
            i += 1
            if v is not None:
                node.right = TreeNode(v)
                queue.append(node.right)
    return root

def serializeTree(root):
    if root is None:
        return []
    out = []
    queue = [root]
    while queue:
        node = queue.pop(0)
        if node is None:
            out.append(None)
            continue
        out.append(node.val)
        queue.append(node.left)
        queue.append(node.right)
    while out and out[-1] is None:
        out.pop()
    return out
`

func generatePython(sig models.Signature, solutionSource string, cases []models.TestCase) string {
	var b strings.Builder
	b.WriteString("import json\n")

	needsList := false
	needsTree := false
	for _, p := range sig.Parameters {
		needsList = needsList || isListNodeType(p.Type)
		needsTree = needsTree || isTreeNodeType(p.Type)
	}
	needsList = needsList || isListNodeType(sig.ReturnType)
	needsTree = needsTree || isTreeNodeType(sig.ReturnType)

	if needsList {
		b.WriteString(pythonListNodeHelpers)
	}
	if needsTree {
		b.WriteString(pythonTreeNodeHelpers)
	}

	b.WriteString("\n")
	b.WriteString(solutionSource)
	b.WriteString("\n\n")
	b.WriteString("_solution = Solution()\n")

	for i, tc := range cases {
		args := make([]string, 0, len(sig.Parameters))
		for _, p := range sig.Parameters {
			raw := tc.Input[p.Name]
			varName := fmt.Sprintf("arg_%d_%s", i, p.Name)
			if isListNodeType(p.Type) {
				fmt.Fprintf(&b, "%s = deserializeList(%s)\n", varName, pythonLiteral(raw))
			} else if isTreeNodeType(p.Type) {
				fmt.Fprintf(&b, "%s = deserializeTree(%s)\n", varName, pythonLiteral(raw))
			} else {
				fmt.Fprintf(&b, "%s = %s\n", varName, pythonLiteral(raw))
			}
			args = append(args, varName)
		}

		resultVar := fmt.Sprintf("result_%d", i)
		fmt.Fprintf(&b, "%s = _solution.%s(%s)\n", resultVar, sig.FunctionName, strings.Join(args, ", "))
		if isListNodeType(sig.ReturnType) {
			fmt.Fprintf(&b, "%s = serializeList(%s)\n", resultVar, resultVar)
		} else if isTreeNodeType(sig.ReturnType) {
			fmt.Fprintf(&b, "%s = serializeTree(%s)\n", resultVar, resultVar)
		}
		fmt.Fprintf(&b, "print('Test %d: ' + json.dumps(%s))\n", i, resultVar)
	}

	return b.String()
}

// pythonLiteral emits v (a JSON-decoded value: nil, bool, float64, string,
// []interface{}, or map[string]interface{}) as a Python literal. It walks
// the value by type rather than text-substituting over the marshaled JSON,
// since a blind null/true/false replace would also corrupt string values
// that merely contain those substrings (e.g. "nullable").
func pythonLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = pythonLiteral(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		parts := make([]string, 0, len(val))
		for k, elem := range val {
			keyLit, _ := json.Marshal(k)
			parts = append(parts, fmt.Sprintf("%s: %s", string(keyLit), pythonLiteral(elem)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		// float64, string: JSON's own rendering is already a valid Python literal.
		data, err := json.Marshal(val)
		if err != nil {
			return "None"
		}
		return string(data)
	}
}

// ---- JavaScript ----

const jsListNodeHelpers = `
function ListNode(val, next) {
  this.val = (val === undefined ? 0 : val);
  this.next = (next === undefined ? null : next);
}
function deserializeList(arr) {
  let head = null, tail = null;
  for (const v of arr) {
    const node = new ListNode(v);
    if (!head) { head = node; } else { tail.next = node; }
    tail = node;
  }
  return head;
}
function serializeList(head) {
  const out = [];
  const seen = new Set();
  let node = head;
  while (node && !seen.has(node)) {
    seen.add(node);
    out.push(node.val);
    node = node.next;
  }
  return out;
}
function attachCycle(head, pos) {
  if (pos < 0 || !head) return head;
  const nodes = [];
  let node = head;
  while (node) { nodes.push(node); node = node.next; }
  if (pos >= nodes.length) return head;
  nodes[nodes.length - 1].next = nodes[pos];
  return head;
}
`

const jsTreeNodeHelpers = `
function TreeNode(val, left, right) {
  this.val = (val === undefined ? 0 : val);
  this.left = (left === undefined ? null : left);
  this.right = (right === undefined ? null : right);
}
function deserializeTree(values) {
  if (!values || values.length === 0 || values[0] === null) return null;
  const root = new TreeNode(values[0]);
  const queue = [root];
  let i = 1;
  while (queue.length && i < values.length) {
    const node = queue.shift();
    if (i < values.length) {
      const v = values[i++];
      if (v !== null) { node.left = new TreeNode(v); queue.push(node.left); }
    }
    if (i < values.length) {
      const v = values[i++];
      if (v !== null) { node.right = new TreeNode(v); queue.push(node.right); }
    }
  }
  return root;
}
function serializeTree(root) {
  if (!root) return [];
  const out = [];
  const queue = [root];
  while (queue.length) {
    const node = queue.shift();
    if (!node) { out.push(null); continue; }
    out.push(node.val);
    queue.push(node.left);
    queue.push(node.right);
  }
  while (out.length && out[out.length - 1] === null) out.pop();
  return out;
}
`

func generateJavaScript(sig models.Signature, solutionSource string, cases []models.TestCase) string {
	var b strings.Builder

	needsList := false
	needsTree := false
	for _, p := range sig.Parameters {
		needsList = needsList || isListNodeType(p.Type)
		needsTree = needsTree || isTreeNodeType(p.Type)
	}
	needsList = needsList || isListNodeType(sig.ReturnType)
	needsTree = needsTree || isTreeNodeType(sig.ReturnType)

	if needsList {
		b.WriteString(jsListNodeHelpers)
	}
	if needsTree {
		b.WriteString(jsTreeNodeHelpers)
	}

	b.WriteString("\n")
	b.WriteString(solutionSource)
	b.WriteString("\n\n")

	for i, tc := range cases {
		args := make([]string, 0, len(sig.Parameters))
		for _, p := range sig.Parameters {
			raw := tc.Input[p.Name]
			varName := fmt.Sprintf("arg_%d_%s", i, p.Name)
			data, _ := json.Marshal(raw)
			if isListNodeType(p.Type) {
				fmt.Fprintf(&b, "const %s = deserializeList(%s);\n", varName, string(data))
			} else if isTreeNodeType(p.Type) {
				fmt.Fprintf(&b, "const %s = deserializeTree(%s);\n", varName, string(data))
			} else {
				fmt.Fprintf(&b, "const %s = %s;\n", varName, string(data))
			}
			args = append(args, varName)
		}

		resultVar := fmt.Sprintf("result_%d", i)
		fmt.Fprintf(&b, "let %s = %s(%s);\n", resultVar, sig.FunctionName, strings.Join(args, ", "))
		if isListNodeType(sig.ReturnType) {
			fmt.Fprintf(&b, "%s = serializeList(%s);\n", resultVar, resultVar)
		} else if isTreeNodeType(sig.ReturnType) {
			fmt.Fprintf(&b, "%s = serializeTree(%s);\n", resultVar, resultVar)
		}
		fmt.Fprintf(&b, "console.log('Test %d: ' + JSON.stringify(%s));\n", i, resultVar)
	}

	return b.String()
}

// ---- Java ----

func generateJava(sig models.Signature, solutionSource string, cases []models.TestCase) string {
	var b strings.Builder
	b.WriteString("import java.util.*;\n\n")
	b.WriteString(solutionSource)
	b.WriteString("\n\n")
	b.WriteString("class BatchRunner {\n")
	b.WriteString("  public static void main(String[] args) {\n")
	b.WriteString("    Solution solution = new Solution();\n")

	for i, tc := range cases {
		args := make([]string, 0, len(sig.Parameters))
		for _, p := range sig.Parameters {
			raw := tc.Input[p.Name]
			varName := fmt.Sprintf("arg_%d_%s", i, p.Name)
			fmt.Fprintf(&b, "    %s %s = %s;\n", javaType(p.Type), varName, javaLiteral(p.Type, raw))
			args = append(args, varName)
		}
		resultVar := fmt.Sprintf("result_%d", i)
		fmt.Fprintf(&b, "    %s %s = solution.%s(%s);\n", javaType(sig.ReturnType), resultVar, sig.FunctionName, strings.Join(args, ", "))
		fmt.Fprintf(&b, "    System.out.println(\"Test %d: \" + String.valueOf(%s));\n", i, resultVar)
	}

	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}

func javaType(t string) string {
	switch t {
	case "int":
		return "int"
	case "int[]":
		return "int[]"
	case "string", "String":
		return "String"
	case "boolean", "bool":
		return "boolean"
	case "double", "float":
		return "double"
	default:
		if isListNodeType(t) {
			return "ListNode"
		}
		if isTreeNodeType(t) {
			return "TreeNode"
		}
		return "Object"
	}
}

func javaLiteral(t string, v interface{}) string {
	switch t {
	case "int":
		return fmt.Sprintf("%v", v)
	case "string", "String":
		return strconv.Quote(fmt.Sprintf("%v", v))
	case "boolean", "bool":
		return fmt.Sprintf("%v", v)
	case "int[]":
		arr, _ := v.([]interface{})
		parts := make([]string, len(arr))
		for i, e := range arr {
			parts[i] = fmt.Sprintf("%v", e)
		}
		return fmt.Sprintf("new int[]{%s}", strings.Join(parts, ", "))
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

// ---- C++ ----

// nullSentinel names -1 as the C++ null marker for tree/list values, since
// C++ has no language-native optional-int null. generateCPP emits no
// ListNode/TreeNode helpers and does not read this constant: ListNode and
// TreeNode arguments are written out as raw JSON text.
const nullSentinel = -1

func generateCPP(sig models.Signature, solutionSource string, cases []models.TestCase) string {
	var b strings.Builder
	b.WriteString("#include <bits/stdc++.h>\nusing namespace std;\n\n")
	b.WriteString(solutionSource)
	b.WriteString("\n\n")
	b.WriteString("int main() {\n")
	b.WriteString("  Solution solution;\n")

	for i, tc := range cases {
		args := make([]string, 0, len(sig.Parameters))
		for _, p := range sig.Parameters {
			raw := tc.Input[p.Name]
			varName := fmt.Sprintf("arg_%d_%s", i, p.Name)
			fmt.Fprintf(&b, "  %s %s = %s;\n", cppType(p.Type), varName, cppLiteral(p.Type, raw))
			args = append(args, varName)
		}
		resultVar := fmt.Sprintf("result_%d", i)
		fmt.Fprintf(&b, "  %s %s = solution.%s(%s);\n", cppType(sig.ReturnType), resultVar, sig.FunctionName, strings.Join(args, ", "))
		fmt.Fprintf(&b, "  cout << \"Test %d: \" << %s << endl;\n", i, resultVar)
	}

	b.WriteString("  return 0;\n}\n")
	return b.String()
}

func cppType(t string) string {
	switch t {
	case "int":
		return "int"
	case "int[]":
		return "vector<int>"
	case "string":
		return "string"
	case "boolean", "bool":
		return "bool"
	default:
		if isListNodeType(t) {
			return "ListNode*"
		}
		if isTreeNodeType(t) {
			return "TreeNode*"
		}
		return "auto"
	}
}

func cppLiteral(t string, v interface{}) string {
	switch t {
	case "int":
		return fmt.Sprintf("%v", v)
	case "string":
		return strconv.Quote(fmt.Sprintf("%v", v))
	case "boolean", "bool":
		return fmt.Sprintf("%v", v)
	case "int[]":
		arr, _ := v.([]interface{})
		parts := make([]string, len(arr))
		for i, e := range arr {
			parts[i] = fmt.Sprintf("%v", e)
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	default:
		_ = nullSentinel
		data, _ := json.Marshal(v)
		return string(data)
	}
}
