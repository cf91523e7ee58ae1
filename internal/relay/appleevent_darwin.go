//go:build darwin && cgo

package relay

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Cocoa
#import <Cocoa/Cocoa.h>
#include <stdlib.h>
#include <string.h>

static char *relayReceivedURL = NULL;

@interface RelayURLEventHandler : NSObject
- (void)handleGetURLEvent:(NSAppleEventDescriptor *)event withReplyEvent:(NSAppleEventDescriptor *)reply;
@end

@implementation RelayURLEventHandler
- (void)handleGetURLEvent:(NSAppleEventDescriptor *)event withReplyEvent:(NSAppleEventDescriptor *)reply {
	NSString *url = [[event paramDescriptorForKeyword:keyDirectObject] stringValue];
	if (url != nil && relayReceivedURL == NULL) {
		relayReceivedURL = strdup([url UTF8String]);
	}
	[NSApp stop:nil];
	// stop only takes effect after the next event is processed
	NSEvent *wake = [NSEvent otherEventWithType:NSEventTypeApplicationDefined
	                                   location:NSZeroPoint
	                              modifierFlags:0
	                                  timestamp:0
	                               windowNumber:0
	                                    context:nil
	                                    subtype:0
	                                      data1:0
	                                      data2:0];
	[NSApp postEvent:wake atStart:YES];
}
@end

static char *relayWaitForURL(void) {
	@autoreleasepool {
		[NSApplication sharedApplication];
		[NSApp setActivationPolicy:NSApplicationActivationPolicyProhibited];
		RelayURLEventHandler *handler = [[RelayURLEventHandler alloc] init];
		[[NSAppleEventManager sharedAppleEventManager]
			setEventHandler:handler
			    andSelector:@selector(handleGetURLEvent:withReplyEvent:)
			  forEventClass:kInternetEventClass
			     andEventID:kAEGetURL];
		[NSApp run];
	}
	return relayReceivedURL;
}
*/
import "C"

import (
	"errors"
	"runtime"
	"unsafe"
)

func init() {
	// Cocoa must run on the main thread; init runs there, so pin it.
	runtime.LockOSThread()
}

// WaitAppleEventURL runs a minimal NSApplication until the GetURL Apple event
// that launched the bundle arrives, and returns its URL.
func WaitAppleEventURL() (string, error) {
	cURL := C.relayWaitForURL()
	if cURL == nil {
		return "", errors.New("GetURL event carried no URL")
	}
	defer C.free(unsafe.Pointer(cURL))
	return C.GoString(cURL), nil
}
