package metrics

var (
	MessagesTotal   = Collector.Counter("memosy_messages_total", "Inbound messages handled by the relay", "")
	MessagesDropped = Collector.Counter("memosy_messages_dropped_total", "Inbound messages dropped because the bus was full", "")
	URLsExtracted   = Collector.Counter("memosy_urls_extracted_total", "URL entities extracted from messages", "")
	HandlerErrors   = Collector.Counter("memosy_handler_errors_total", "Messages whose handling ended with an error", "")

	DownloadsOK       = Collector.Counter("memosy_downloads_total", "Downloader invocations", `result="ok"`)
	DownloadsFailed   = Collector.Counter("memosy_downloads_total", "Downloader invocations", `result="failed"`)
	DownloadsInFlight = Collector.Gauge("memosy_downloads_in_flight", "Downloader processes currently running", "")

	DeliveriesOK     = Collector.Counter("memosy_deliveries_total", "Video uploads to chat", `result="ok"`)
	DeliveriesFailed = Collector.Counter("memosy_deliveries_total", "Video uploads to chat", `result="failed"`)

	UpdatesOK     = Collector.Counter("memosy_downloader_updates_total", "Downloader self-update runs", `result="ok"`)
	UpdatesFailed = Collector.Counter("memosy_downloader_updates_total", "Downloader self-update runs", `result="failed"`)

	DownloadLatency = Collector.Histogram("memosy_download_latency_seconds", "Downloader run time in seconds", "",
		[]float64{1, 5, 10, 30, 60, 120, 300, 600})
)
