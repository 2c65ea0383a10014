// Package builder builds the sandbox images.
//
// A sandbox image is the upstream standalone image for a browser plus
// ffmpeg and the recording directory, tagged <prefix>-<browser>:<version>.
// What differs per browser lives in the browser descriptor table; the
// build steps are the same for every browser.
package builder
