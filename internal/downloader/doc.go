// Package downloader wraps the external yt-dlp binary: argument building from
// network identity profiles, per-URL jobs with private output directories,
// first-run installation and the periodic self-update.
package downloader
