// Package shadercombo enumerates the static/dynamic combo space of a shader
// entry, dispatches surviving combinations to a compiler back end, and packs
// the resulting bytecode into a single versioned container file per shader.
package shadercombo
