package netconf

import "fmt"

// Subtree filters for the operational data models the bot reads.
const (
	GetCPUProcesses    = `<cpu-usage xmlns="http://cisco.com/ns/yang/Cisco-IOS-XE-process-cpu-oper"/>`
	GetMemoryProcesses = `<memory-usage-processes xmlns="http://cisco.com/ns/yang/Cisco-IOS-XE-process-memory-oper"/>`
	GetBGPNeighbors    = `<bgp-state xmlns="http://cisco.com/ns/yang/Cisco-IOS-XE-bgp-oper"><neighbors/></bgp-state>`
	GetBGPNeighbor     = `<bgp-state xmlns="http://cisco.com/ns/yang/Cisco-IOS-XE-bgp-oper"/>`
	IETFGetRoutes      = `<routing-state xmlns="urn:ietf:params:xml:ns:yang:ietf-routing"/>`
)

const setBGPDownTemplate = `<native xmlns="http://cisco.com/ns/yang/Cisco-IOS-XE-native">
  <router>
    <bgp xmlns="http://cisco.com/ns/yang/Cisco-IOS-XE-bgp">
        <id>%s</id>
        <shutdown/>
    </bgp>
  </router>
</native>`

// SetBGPDown returns the config snippet that shuts down the BGP process asn.
func SetBGPDown(asn string) string {
	return fmt.Sprintf(setBGPDownTemplate, asn)
}

const configNamespace = "urn:ietf:params:xml:ns:netconf:base:1.0"

func getRPC(filter string) string {
	return fmt.Sprintf(`<get><filter type="subtree">%s</filter></get>`, filter)
}

func editConfigRPC(snippet string) string {
	return fmt.Sprintf(
		`<edit-config><target><running/></target><test-option>test-then-set</test-option><config xmlns:xc="%s">%s</config></edit-config>`,
		configNamespace, snippet)
}
