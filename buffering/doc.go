// Package buffering provides a spill buffer for HTTP message bodies.
//
// A Buffer keeps up to Config.Threshold bytes in memory. The write that
// would take it past the threshold moves everything to a uniquely named
// file in Config.TmpDir, and all later writes append to that file. After
// the write phase the buffer can be read any number of times, each pass
// starting at the first byte and producing chunks of at most
// Config.ProduceBlockSize bytes. Close removes the file.
//
// # Request Bodies
//
// EnableRequestBuffering wraps r.Body in a *Body so that middleware can
// consume the body for signature computation and still hand an identical
// copy to the next handler:
//
//	body, owned, err := buffering.EnableRequestBuffering(buffering.Config{}, r)
//	if err != nil {
//	    return err
//	}
//	if owned {
//	    defer body.Close()
//	}
//
//	if err := body.Rewind(); err != nil {
//	    return err
//	}
//	io.Copy(digest, body)
//
//	body.Rewind() // next handler reads from the first byte again
//
// # Response Bodies
//
// ResponseWriter captures a handler's response into a Buffer so it can be
// inspected before Replay sends it to the client.
package buffering
