package zeroconf

import (
	"errors"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ============================================================================
//                              多播连接
// ============================================================================

var (
	// mDNS 多播组地址（RFC 6762 §3）
	mdnsGroupIPv4 = net.IPv4(224, 0, 0, 251)
	mdnsGroupIPv6 = net.ParseIP("ff02::fb")

	// 绑定到多播通配地址，允许多个进程共享 5353 端口
	mdnsWildcardAddrIPv4 = &net.UDPAddr{IP: net.ParseIP("224.0.0.0"), Port: 5353}
	mdnsWildcardAddrIPv6 = &net.UDPAddr{IP: net.ParseIP("ff02::"), Port: 5353}

	// 发送目标
	ipv4Addr = &net.UDPAddr{IP: mdnsGroupIPv4, Port: 5353}
	ipv6Addr = &net.UDPAddr{IP: mdnsGroupIPv6, Port: 5353}
)

var errNoMulticastConn = errors.New("no multicast connection available")

// joinUDP4Multicast 建立 IPv4 多播连接并加入组
func joinUDP4Multicast(ifaces []net.Interface) (*ipv4.PacketConn, error) {
	udpConn, err := net.ListenUDP("udp4", mdnsWildcardAddrIPv4)
	if err != nil {
		return nil, err
	}

	pkConn := ipv4.NewPacketConn(udpConn)
	_ = pkConn.SetMulticastTTL(255)

	joined := 0
	for i := range ifaces {
		if err := pkConn.JoinGroup(&ifaces[i], &net.UDPAddr{IP: mdnsGroupIPv4}); err == nil {
			joined++
		}
	}
	if joined == 0 {
		_ = pkConn.Close()
		return nil, errNoMulticastConn
	}
	return pkConn, nil
}

// joinUDP6Multicast 建立 IPv6 多播连接并加入组
func joinUDP6Multicast(ifaces []net.Interface) (*ipv6.PacketConn, error) {
	udpConn, err := net.ListenUDP("udp6", mdnsWildcardAddrIPv6)
	if err != nil {
		return nil, err
	}

	pkConn := ipv6.NewPacketConn(udpConn)
	_ = pkConn.SetMulticastHopLimit(255)

	joined := 0
	for i := range ifaces {
		if err := pkConn.JoinGroup(&ifaces[i], &net.UDPAddr{IP: mdnsGroupIPv6}); err == nil {
			joined++
		}
	}
	if joined == 0 {
		_ = pkConn.Close()
		return nil, errNoMulticastConn
	}
	return pkConn, nil
}

// listMulticastInterfaces 列出支持多播的活动接口
func listMulticastInterfaces() []net.Interface {
	var out []net.Interface
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if (iface.Flags & net.FlagUp) == 0 {
			continue
		}
		if (iface.Flags & net.FlagMulticast) > 0 {
			out = append(out, iface)
		}
	}
	return out
}

// multicastSend4 在所有接口上发送 IPv4 多播报文
func multicastSend4(conn *ipv4.PacketConn, ifaces []net.Interface, data []byte) {
	if conn == nil {
		return
	}
	for i := range ifaces {
		_ = conn.SetMulticastInterface(&ifaces[i])
		_, _ = conn.WriteTo(data, nil, ipv4Addr)
	}
}

// multicastSend6 在所有接口上发送 IPv6 多播报文
func multicastSend6(conn *ipv6.PacketConn, ifaces []net.Interface, data []byte) {
	if conn == nil {
		return
	}
	for i := range ifaces {
		_ = conn.SetMulticastInterface(&ifaces[i])
		_, _ = conn.WriteTo(data, nil, ipv6Addr)
	}
}
