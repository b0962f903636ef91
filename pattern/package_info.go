// Package pattern implements structural matching of JSON values against expectation patterns.
//
// A pattern is an ordinary JSON value with a few special forms: null (the value must be null or
// absent), an object with a "contains" key (containment), and placeholder strings such as
// {{ANY}}, {{UUID}} or {{REGEX:^ok}}. Objects match as subsets; arrays must match exactly.
package pattern
