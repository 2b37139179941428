// Command pinas-console is the terminal front end for a PiNAS server.
package main

func main() {
	execute()
}
