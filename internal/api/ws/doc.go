// Package ws serves interface calls over WebSocket.
//
// Frames are JSON. A call frame
//
//	{"type":"call","id":"1","interface":"users","version":"2","method":"get","args":{...}}
//
// is answered by {"type":"result","id":"1","result":...} or
// {"type":"error","id":"1","error":{"code":...,"message":...}}. Procedures
// push {"type":"event","name":...,"data":...} frames through
// this.client.emit.
package ws
