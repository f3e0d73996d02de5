// Mercator Saturn is a routing proxy for the Anthropic Messages API.
//
// It presents /v1/messages and /v1/messages/count_tokens to a pinned
// Anthropic-native client and forwards each request to one of several
// configured upstream providers, providing:
//   - Request classification (think, background, websearch, subagent,
//     prompt rules) onto logical models
//   - Ordered provider fallback chains with passive health tracking
//   - Wire translation for OpenAI- and Gemini-style upstreams,
//     including streaming SSE transcoding
//   - Hot configuration reload without dropping in-flight requests
//
// Usage:
//
//	# Start the proxy with the default configuration
//	saturn run
//
//	# Start with a custom configuration file
//	saturn run --config /path/to/config.yaml
//
//	# Check the configuration without starting
//	saturn validate
//
//	# Stop a running instance
//	saturn stop
//
//	# Show whether an instance is running
//	saturn status
//
// For complete documentation, see: https://github.com/mercator-hq/saturn
package main

func main() {
	Execute()
}
