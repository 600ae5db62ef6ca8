// Package inference turns an extracted frame into ranked labels.
//
// Load is the single, fatal-on-failure initialization step: it reads the
// label set, waits for the model backend to report ready, and checks that the
// backend's tensor shapes agree with the labels and preprocessing settings.
// The resulting Engine is immutable and safe for concurrent use.
//
// Classify decodes the image, resizes and normalizes it into a CHW float32
// tensor, asks the Backend for logits, applies a softmax, and keeps the
// three most probable classes (ties keep class-index order) rounded to four
// decimals. Holder publishes the engine to request handlers once Load
// succeeds and answers ErrModelNotLoaded before that.
package inference
