// Command makertron evaluates solid-modeling scripts locally or serves them
// over HTTP and socket.io.
package main

func main() {
	Execute()
}
