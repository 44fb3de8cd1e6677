package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/flag"
	"github.com/vczyh/mysql-cdc/mysql"
	"github.com/vczyh/mysql-cdc/packet"
)

var (
	CACertName     = "ca.pem"
	CAKeyName      = "ca-key.pem"
	ClientCertName = "client-cert.pem"
	ClientKeyName  = "client-key.pem"
	ServerCertName = "server-cert.pem"
	ServerKeyName  = "server-key.pem"
)

func (s *Server) handleTLS(data []byte, conn mysql.Conn) error {
	pkt, err := packet.ParseSSLRequest(data)
	if err != nil {
		return err
	}
	if s.tlsConfig == nil || pkt.ClientCapabilityFlags&flag.ClientSSL == 0 {
		return packet.ErrPacketData
	}

	conn.SetCapabilities(conn.Capabilities() & pkt.ClientCapabilityFlags)
	return conn.ServerTLS(s.tlsConfig)
}

func (s *Server) buildTLSConfig() (err error) {
	if !s.useSSL {
		return nil
	}

	var cert tls.Certificate
	var certPool *x509.CertPool
	if s.sslCert != "" && s.sslKey != "" {
		if cert, err = tls.LoadX509KeyPair(s.sslCert, s.sslKey); err != nil {
			return errors.Wrap(err, "load key pair")
		}
	} else {
		if err := s.generateReadCerts(); err != nil {
			return err
		}
		cert = s.serverCert
		if certPool, err = s.caPool(); err != nil {
			return err
		}
	}

	if s.sslCA != "" {
		caCertBytes, err := os.ReadFile(s.sslCA)
		if err != nil {
			return errors.Wrap(err, "read ca file")
		}
		certPool = x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM(caCertBytes); !ok {
			return errors.Errorf("no certificate found in %s", s.sslCA)
		}
	}

	s.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    certPool,
	}
	return nil
}

func (s *Server) caPool() (*x509.CertPool, error) {
	ca := s.caCert.Leaf
	if ca == nil {
		var err error
		if ca, err = x509.ParseCertificate(s.caCert.Certificate[0]); err != nil {
			return nil, err
		}
	}
	pool := x509.NewCertPool()
	pool.AddCert(ca)
	return pool, nil
}

// CertPool returns a pool with the generated CA, for clients verifying the
// server. It is nil unless the certificates were generated or read from the
// certs dir.
func (s *Server) CertPool() *x509.CertPool {
	if len(s.caCert.Certificate) == 0 {
		return nil
	}
	pool, err := s.caPool()
	if err != nil {
		return nil
	}
	return pool
}

func (s *Server) generateReadCerts() (err error) {
	isExist, err := s.isCertsExist()
	if err != nil {
		return err
	}
	if isExist {
		return s.readCerts()
	}

	// First, generate CA private key and cert.
	if s.caCert, err = generateCA(s.version + "_Auto_Generated_CA_Certificate"); err != nil {
		return err
	}

	// Next, generate Server/Client private key and cert.
	if s.serverCert, err = generateCert(s.caCert, s.version+"_Auto_Generated_Server_Certificate"); err != nil {
		return err
	}
	if s.clientCert, err = generateCert(s.caCert, s.version+"_Auto_Generated_Client_Certificate"); err != nil {
		return err
	}

	if s.certsDir == "" {
		return nil
	}

	dir := s.certsDir
	if err := writeCertPair(s.caCert, filepath.Join(dir, CACertName), filepath.Join(dir, CAKeyName)); err != nil {
		return err
	}
	if err := writeCertPair(s.serverCert, filepath.Join(dir, ServerCertName), filepath.Join(dir, ServerKeyName)); err != nil {
		return err
	}
	return writeCertPair(s.clientCert, filepath.Join(dir, ClientCertName), filepath.Join(dir, ClientKeyName))
}

// isCertsExist reports whether any certificate file is already in the
// certs dir.
func (s *Server) isCertsExist() (bool, error) {
	if s.certsDir == "" {
		return false, nil
	}
	for _, name := range []string{CACertName, CAKeyName, ClientCertName, ClientKeyName, ServerCertName, ServerKeyName} {
		_, err := os.Stat(filepath.Join(s.certsDir, name))
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

func (s *Server) readCerts() (err error) {
	dir := s.certsDir
	if s.caCert, err = tls.LoadX509KeyPair(filepath.Join(dir, CACertName), filepath.Join(dir, CAKeyName)); err != nil {
		return err
	}
	if s.clientCert, err = tls.LoadX509KeyPair(filepath.Join(dir, ClientCertName), filepath.Join(dir, ClientKeyName)); err != nil {
		return err
	}
	s.serverCert, err = tls.LoadX509KeyPair(filepath.Join(dir, ServerCertName), filepath.Join(dir, ServerKeyName))
	return err
}

func generateCA(organization string) (tls.Certificate, error) {
	template, err := certTemplate(organization)
	if err != nil {
		return tls.Certificate{}, err
	}
	template.KeyUsage |= x509.KeyUsageCertSign
	template.IsCA = true

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	certDerBytes, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return tls.Certificate{}, err
	}
	return keyPair(certDerBytes, privateKey)
}

func generateCert(ca tls.Certificate, organization string) (tls.Certificate, error) {
	template, err := certTemplate(organization)
	if err != nil {
		return tls.Certificate{}, err
	}
	template.DNSNames = []string{"localhost"}
	template.IPAddresses = []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}

	caCert := ca.Leaf
	if caCert == nil {
		if caCert, err = x509.ParseCertificate(ca.Certificate[0]); err != nil {
			return tls.Certificate{}, err
		}
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	certDerBytes, err := x509.CreateCertificate(rand.Reader, template, caCert, &privateKey.PublicKey, ca.PrivateKey)
	if err != nil {
		return tls.Certificate{}, err
	}
	return keyPair(certDerBytes, privateKey)
}

func certTemplate(organization string) (*x509.Certificate, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, err
	}

	notBefore := time.Now().Add(-time.Hour)
	return &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{organization},
		},
		NotBefore: notBefore,
		NotAfter:  notBefore.Add(time.Hour * 24 * 365 * 10),

		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},

		BasicConstraintsValid: true,
	}, nil
}

func keyPair(certDerBytes []byte, privateKey *rsa.PrivateKey) (tls.Certificate, error) {
	keyDerBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDerBytes}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDerBytes}))
}

func writeCertPair(cert tls.Certificate, certFile, keyFile string) error {
	keyDerBytes, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	if err != nil {
		return err
	}
	if err := writePEMFile(keyFile, 0600, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDerBytes}); err != nil {
		return err
	}
	return writePEMFile(certFile, 0644, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
}

func writePEMFile(name string, perm os.FileMode, block *pem.Block) error {
	return os.WriteFile(name, pem.EncodeToMemory(block), perm)
}
