// Package generation is the director's view of the generative models.
//
// Collaborator is the five-operation contract the pipeline consumes: script
// synthesis, prompt recompilation, candidate composites, per-panel remaster,
// and per-panel prompt extraction. Service implements it on top of two small
// provider interfaces, TextModel and ImageModel, and owns every prompt
// template, the script JSON parser, and the sequential candidate loop.
//
// Providers live under internal/services and only move bytes; all prompt
// wording and fallback policy lives here.
package generation
